package source

import "go/ast"

// Metric names reported by Complexity.
const (
	MetricLoops            = "loops"
	MetricNestedOperations = "nested_operations"
)

// Complexity counts loop statements in code and how many of them sit inside
// another loop's body. It returns an empty map when code does not parse.
func Complexity(code string) map[string]int {
	file, err := parse(code)
	if err != nil || file == nil {
		return map[string]int{}
	}

	metrics := map[string]int{
		MetricLoops:            0,
		MetricNestedOperations: 0,
	}
	walkLoops(file, 0, metrics)
	return metrics
}

// walkLoops visits n, tracking how many enclosing loop bodies surround it.
func walkLoops(n ast.Node, depth int, metrics map[string]int) {
	ast.Inspect(n, func(node ast.Node) bool {
		var body *ast.BlockStmt
		switch loop := node.(type) {
		case *ast.ForStmt:
			body = loop.Body
		case *ast.RangeStmt:
			body = loop.Body
		default:
			return true
		}

		metrics[MetricLoops]++
		if depth > 0 {
			metrics[MetricNestedOperations]++
		}
		if body != nil {
			walkLoops(body, depth+1, metrics)
		}
		return false
	})
}
