package main

import (
	"bufio"
	"bytes"
	"strings"

	"github.com/gophersatwork/bundle"
)

// directiveEvaluator implements bundle.Evaluator with a minimal comment
// directive syntax read from the file's leading comment block:
//
//	//= require other.js      (also "#=" for css and friends)
//	//= require_self
//	//= depend_on data.json
//
// require names a logical path to bundle before this file's body,
// require_self pulls the body ahead of the remaining requirements, and
// depend_on records an extra root-relative dependency without bundling it.
// Directive lines are stripped from the output.
type directiveEvaluator struct{}

// Evaluate implements bundle.Evaluator.
func (directiveEvaluator) Evaluate(path string, data []byte) (bundle.Evaluation, error) {
	var ev bundle.Evaluation
	var out []string

	header := true
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)

		var directive string
		switch {
		case strings.HasPrefix(trimmed, "//="):
			directive = strings.TrimSpace(trimmed[3:])
		case strings.HasPrefix(trimmed, "#="):
			directive = strings.TrimSpace(trimmed[2:])
		}

		if header && directive != "" {
			fields := strings.Fields(directive)
			switch fields[0] {
			case "require":
				if len(fields) > 1 {
					ev.RequiredPaths = append(ev.RequiredPaths, fields[1])
				}
			case "require_self":
				ev.RequireSelf = true
			case "depend_on":
				if len(fields) > 1 {
					ev.DependencyPaths = append(ev.DependencyPaths, fields[1])
				}
			}
			continue
		}
		if trimmed != "" {
			header = false
		}
		out = append(out, line)
	}
	if err := scanner.Err(); err != nil {
		return bundle.Evaluation{}, err
	}

	if len(out) > 0 {
		ev.Output = []byte(strings.Join(out, "\n") + "\n")
	} else {
		ev.Output = []byte{}
	}
	return ev, nil
}
