// Package rls derives the mandatory tenant-scoping predicate for a
// dataset. The predicate is produced before any client filter is looked
// at and is merged into the compiled plan under an outer AND; no code
// path drops it once produced.
package rls

import (
	"github.com/semgate-labs/semgate/internal/auth"
	"github.com/semgate-labs/semgate/internal/catalog"
	"github.com/semgate-labs/semgate/internal/errors"
	"github.com/semgate-labs/semgate/pkg/models"
)

// Result is the outcome of the RLS decision for one request. The
// decision is copied into the response stats for every query so external
// audits can verify enforcement.
type Result struct {
	// Applied is true when a predicate was produced.
	Applied bool

	// Predicate is the tenant-scoping filter, nil unless Applied.
	Predicate *models.Filter

	// Bypassed is true when an admin bypass was taken.
	Bypassed bool

	// Reason describes the decision for audit logging.
	Reason string
}

// Evaluate returns the RLS decision for a dataset and caller.
//
// A dataset with RLS enabled but a policy column that names no field is
// a ConfigError and fails the request; the policy is never skipped
// silently. Admin bypass is a per-dataset setting: an admin caller does
// not bypass datasets where bypass is disallowed.
func Evaluate(ds *catalog.Dataset, tc auth.TenantContext) (Result, error) {
	if !ds.RLS.Enabled {
		return Result{Reason: "rls disabled on dataset"}, nil
	}

	field, ok := ds.FieldByName(ds.RLS.Column)
	if !ok {
		return Result{}, errors.NewConfig(
			"dataset %s: rls.column %q does not name a field", ds.ID, ds.RLS.Column)
	}

	if ds.RLS.AllowAdminBypass && tc.Role == auth.RoleAdmin {
		return Result{Bypassed: true, Reason: "admin bypass allowed by dataset policy"}, nil
	}

	if tc.Tenant == "" {
		return Result{}, errors.New(errors.KindAuthRequired, "tenant is required for rls-scoped dataset %s", ds.ID)
	}

	// in_list mode is reserved for caller-derived tenant lists; until the
	// auth collaborator supplies one it behaves as equals.
	predicate := &models.Filter{
		Field: physicalRef(ds, field),
		Op:    models.OpEq,
		Value: tc.Tenant,
	}

	return Result{
		Applied:   true,
		Predicate: predicate,
		Reason:    "tenant predicate applied",
	}, nil
}

// physicalRef resolves the policy column to its physical reference so
// the predicate survives the dimension-to-column rewrite unchanged.
func physicalRef(ds *catalog.Dataset, f catalog.Field) string {
	col := f.PhysicalColumn
	if col == "" {
		col = f.Name
	}
	if f.SourceTable != "" {
		return f.SourceTable + "." + col
	}
	return col
}
