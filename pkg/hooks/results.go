package hooks

import "fmt"

// As converts a hook result to T. A nil result yields the zero value.
func As[T any](v any, err error) (T, error) {
	var zero T
	if err != nil {
		return zero, err
	}
	if v == nil {
		return zero, nil
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("hook returned %T, expected %T", v, zero)
	}
	return t, nil
}

// Collect converts the results of RunInOrder or RunInParallel to T,
// skipping nil results.
func Collect[T any](results []any, err error) ([]T, error) {
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(results))
	for i, r := range results {
		if r == nil {
			continue
		}
		t, ok := r.(T)
		if !ok {
			var zero T
			return nil, fmt.Errorf("hook handler %d returned %T, expected %T", i, r, zero)
		}
		out = append(out, t)
	}
	return out, nil
}
