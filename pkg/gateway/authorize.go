package gateway

import (
	"context"

	"github.com/shmkit/itsgate/pkg/directory/store"
)

// Authorizer decides whether a session may touch a requested project or
// structure. Admin sessions bypass every check; limited sessions are tested
// against their grant list, with one indirection: a structure is also
// allowed when it belongs to a project the session is granted.
type Authorizer struct{}

// AuthorizeProject reports whether the session may operate on the project.
func (Authorizer) AuthorizeProject(sess *Session, projectID string) bool {
	if sess.IsAdmin() {
		return true
	}
	return sess.HasAuthorizedID(projectID)
}

// AuthorizeStructure reports whether the session may operate on the
// structure. Direct structure grants are checked first; otherwise the
// session's project grants are expanded to their structures and membership
// is tested against the expansion.
func (Authorizer) AuthorizeStructure(ctx context.Context, dir *store.Store, sess *Session, structureID string) (bool, error) {
	if sess.IsAdmin() {
		return true, nil
	}
	if sess.HasAuthorizedID(structureID) {
		return true, nil
	}
	if len(sess.AuthorizedIDs) == 0 {
		return false, nil
	}

	expanded, err := dir.StructuresForProjects(ctx, sess.AuthorizedIDs)
	if err != nil {
		return false, err
	}
	for _, st := range expanded {
		if st.StID == structureID {
			return true, nil
		}
	}
	return false, nil
}

// AuthorizePlacement reports whether the session may read data from a
// sensor placed under the given project and structure. Membership in either
// grant is enough; project-scoped grants cover every structure beneath them
// through the project id carried by the placement itself.
func (Authorizer) AuthorizePlacement(sess *Session, projectID, structureID string) bool {
	if sess.IsAdmin() {
		return true
	}
	return sess.HasAuthorizedID(projectID) || sess.HasAuthorizedID(structureID)
}
