package options

import (
	"fmt"
	"strconv"
	"strings"
)

// BuildArguments merges overrides over the defaults and renders the result.
func BuildArguments(overrides Options) []string {
	return ToArgs(Merge(defaults, overrides))
}

// ToArgs reconstructs Options into CLI arguments.
//
// Every key except input-files becomes "--key=value" in insertion order;
// input files follow as positional arguments in their original order.
func ToArgs(o Options) []string {
	args := make([]string, 0, len(o.keys))
	for _, k := range o.keys {
		if k == KeyInputFiles {
			continue
		}
		args = append(args, fmt.Sprintf("--%s=%s", k, FormatValue(o.values[k])))
	}
	return append(args, o.InputFiles()...)
}

// FormatValue renders an option value the way it appears after "=".
func FormatValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case uint64:
		return strconv.FormatUint(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case []string:
		return strings.Join(val, ",")
	default:
		return fmt.Sprint(val)
	}
}
