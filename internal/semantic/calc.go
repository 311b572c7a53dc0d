package semantic

import (
	"strings"

	"github.com/semgate-labs/semgate/internal/errors"
	"github.com/semgate-labs/semgate/internal/sqlbuilder"
)

// expandCalculated compiles a calculated-field expression into a
// template whose [name] bracket references are replaced with the
// referenced measures' rendered subexpressions. References may chain
// through other calculated fields; cycles fail with a ConfigError.
func (r *resolver) expandCalculated(name, expression string, visiting map[string]bool) (resolvedField, error) {
	if visiting == nil {
		visiting = make(map[string]bool)
	}
	if visiting[name] {
		return resolvedField{}, errors.NewConfig("calculated field %q references itself through a cycle", name)
	}
	visiting[name] = true
	defer delete(visiting, name)

	segments, refs, err := splitBracketRefs(name, expression)
	if err != nil {
		return resolvedField{}, err
	}
	if len(refs) == 0 {
		return resolvedField{}, errors.NewConfig("calculated field %q has no [field] references", name)
	}

	out := resolvedField{name: name}
	args := make([]sqlbuilder.Expr, 0, len(refs))
	for _, ref := range refs {
		sub, err := r.resolveRef(ref, visiting)
		if err != nil {
			return resolvedField{}, errors.Wrap(errors.KindConfig, err,
				"calculated field %q: reference [%s]", name, ref)
		}
		args = append(args, sub.expr)
		out.tables = append(out.tables, sub.tables...)
		out.measure = out.measure || sub.measure
	}

	var format strings.Builder
	for i, seg := range segments {
		format.WriteString(sqlbuilder.EscapeTemplate(seg))
		if i < len(args) {
			format.WriteString("%s")
		}
	}

	out.expr = sqlbuilder.TemplateExpr{Format: format.String(), Args: args}
	return out, nil
}

// resolveRef resolves one bracket reference: measures and calculated
// fields first, dimensions last.
func (r *resolver) resolveRef(ref string, visiting map[string]bool) (resolvedField, error) {
	if f, err := r.resolveMetric(ref, visiting); err == nil {
		return f, nil
	} else if errors.Is(err, errors.KindConfig) {
		return resolvedField{}, err
	}
	return r.resolveDimension(ref)
}

// splitBracketRefs splits an expression into the literal segments around
// its [name] references. len(segments) == len(refs)+1.
func splitBracketRefs(name, expression string) ([]string, []string, error) {
	var segments, refs []string
	start := 0
	i := 0
	for i < len(expression) {
		switch expression[i] {
		case '[':
			end := strings.IndexByte(expression[i:], ']')
			if end < 0 {
				return nil, nil, errors.NewConfig("calculated field %q has an unterminated [ reference", name)
			}
			ref := expression[i+1 : i+end]
			if strings.TrimSpace(ref) == "" {
				return nil, nil, errors.NewConfig("calculated field %q has an empty [] reference", name)
			}
			segments = append(segments, expression[start:i])
			refs = append(refs, ref)
			i += end + 1
			start = i
		case ']':
			return nil, nil, errors.NewConfig("calculated field %q has an unmatched ] at offset %d", name, i)
		default:
			i++
		}
	}
	segments = append(segments, expression[start:])
	return segments, refs, nil
}
