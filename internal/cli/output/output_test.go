package output

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseFormat(t *testing.T) {
	cases := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatTable, false},
		{"table", FormatTable, false},
		{"JSON", FormatJSON, false},
		{" yaml ", FormatYAML, false},
		{"yml", FormatYAML, false},
		{"xml", "", true},
	}
	for _, tc := range cases {
		got, err := ParseFormat(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseFormat(%q): expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseFormat(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Errorf("ParseFormat(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestPrintTable(t *testing.T) {
	data := NewTableData("userid", "grade")
	data.AddRow("admin", "AD")
	data.AddRow("manager", "CM")

	var buf bytes.Buffer
	if err := PrintTable(&buf, data); err != nil {
		t.Fatalf("PrintTable: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"USERID", "GRADE", "admin", "manager"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPrinterJSON(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, FormatJSON, false)

	if err := p.Print(map[string]string{"stid": "S_000001"}); err != nil {
		t.Fatalf("Print: %v", err)
	}
	if !strings.Contains(buf.String(), `"stid": "S_000001"`) {
		t.Errorf("unexpected JSON output: %s", buf.String())
	}
}

func TestPrinterYAML(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, FormatYAML, false)

	if err := p.Print(map[string]string{"stid": "S_000001"}); err != nil {
		t.Fatalf("Print: %v", err)
	}
	if !strings.Contains(buf.String(), "stid: S_000001") {
		t.Errorf("unexpected YAML output: %s", buf.String())
	}
}

func TestPrinterColor(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf, FormatTable, true).Success("ok")
	if !strings.Contains(buf.String(), "\033[32m") {
		t.Errorf("expected green escape code, got %q", buf.String())
	}

	buf.Reset()
	NewPrinter(&buf, FormatTable, false).Error("bad")
	if strings.Contains(buf.String(), "\033[") {
		t.Errorf("expected no escape codes, got %q", buf.String())
	}
}
