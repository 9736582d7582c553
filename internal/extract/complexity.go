package extract

import "strings"

// decisionPointKinds is the language-agnostic set of tree-sitter node kinds
// that represent a branch in control flow, grounded on the original
// codegraph-parser complexity analyzer's is_decision_point (if/while/for/
// loop/match/switch/catch/ternary across Rust, Python, JS/TS, Go, Java,
// Swift, C#, Ruby, PHP).
var decisionPointKinds = map[string]bool{
	"if_expression":       true,
	"if_statement":        true,
	"if_let_expression":   true,
	"guard_statement":     true,
	"elif_clause":         true,
	"else_if_clause":      true,
	"while_expression":    true,
	"while_statement":     true,
	"do_statement":        true,
	"repeat_while_statement": true,
	"for_expression":       true,
	"for_statement":        true,
	"for_in_statement":     true,
	"for_of_statement":     true,
	"foreach_statement":    true,
	"enhanced_for_statement": true,
	"loop_expression":      true,
	"match_expression":     true,
	"match_statement":      true,
	"switch_statement":     true,
	"switch_expression":    true,
	"select_statement":     true,
	"case":                 true,
	"conditional_expression": true,
	"catch_clause":         true,
	"except_clause":        true,
	"rescue":               true,
}

// logicalExpressionKinds are node kinds whose immediate `&&`/`||` child
// tokens each add one decision point.
var logicalExpressionKinds = map[string]bool{
	"binary_expression":  true,
	"logical_expression": true,
	"boolean_operator":   true,
}

// CyclomaticComplexity computes 1 + count(decision points) over n's
// subtree, following the original's calculate_cyclomatic_complexity.
func CyclomaticComplexity(n *Node, source []byte) int {
	return 1 + countDecisionPoints(n, source)
}

func countDecisionPoints(n *Node, source []byte) int {
	if n == nil {
		return 0
	}
	count := 0
	if decisionPointKinds[n.Type] {
		count++
	}

	if logicalExpressionKinds[n.Type] {
		matched := false
		for _, child := range n.Children {
			switch child.Type {
			case "&&", "||", "and", "or":
				count++
				matched = true
			}
		}
		if !matched {
			text := n.Content(source)
			count += strings.Count(text, "&&")
			count += strings.Count(text, "||")
		}
	}

	for _, child := range n.Children {
		count += countDecisionPoints(child, source)
	}
	return count
}
