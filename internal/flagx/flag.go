// Package flagx lets several flag sets share os.Args: each component picks
// out only the flags it owns before parsing.
package flagx

import (
	"flag"
	"os"
	"strings"
)

// configFlags are the spellings that name a JSON config file.
var configFlags = []string{"-c", "-config", "--config"}

// FilterArgs keeps the arguments in args that belong to allowedFlags, in
// their original order. Both "-f value" and "-f=value" are recognized. A
// token that starts with '-' is never taken as a value.
func FilterArgs(args []string, allowedFlags []string) []string {
	allowed := make(map[string]bool, len(allowedFlags))
	for _, f := range allowedFlags {
		allowed[f] = true
	}

	filtered := make([]string, 0, len(args))

	for i := 0; i < len(args); i++ {
		arg := args[i]
		if !strings.HasPrefix(arg, "-") {
			continue
		}

		if name, _, ok := strings.Cut(arg, "="); ok {
			if allowed[name] {
				filtered = append(filtered, arg)
			}
			continue
		}

		if !allowed[arg] {
			continue
		}
		filtered = append(filtered, arg)
		if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			filtered = append(filtered, args[i+1])
			i++
		}
	}

	return filtered
}

// JsonConfigFlags returns the config file path given by -c, -config or
// --config, or "" when none is present. The last occurrence wins.
func JsonConfigFlags() string {
	var config string

	fs := flag.NewFlagSet("json", flag.ContinueOnError)
	fs.StringVar(&config, "config", "", "path to config file")
	fs.StringVar(&config, "c", "", "path to config file (short)")
	_ = fs.Parse(FilterArgs(os.Args[1:], configFlags))

	return config
}
