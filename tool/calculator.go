package tool

import (
	"fmt"
	"strings"

	"convo/core"
)

type calculatorArgs struct {
	FirstNum  float64 `json:"first_num" description:"First operand"`
	SecondNum float64 `json:"second_num" description:"Second operand"`
	Operation string  `json:"operation" description:"One of add, sub, mul, div (symbol aliases accepted)"`
}

// NewCalculator returns a basic arithmetic tool. Division by zero is
// reported inside the result payload so the model can recover from it.
func NewCalculator() *FunctionTool {
	return NewFunctionToolFromStruct(
		"calculator",
		"Perform basic arithmetic on two numbers. Accepts integers and floats.",
		calculatorArgs{},
		func(_ *core.ToolContext, args map[string]any) (any, error) {
			first, err := toFloat(args["first_num"])
			if err != nil {
				return map[string]any{"error": err.Error()}, nil
			}
			second, err := toFloat(args["second_num"])
			if err != nil {
				return map[string]any{"error": err.Error()}, nil
			}

			op, _ := args["operation"].(string)
			switch strings.ToLower(op) {
			case "add", "+":
				return map[string]any{"result": first + second}, nil
			case "sub", "subtract", "-":
				return map[string]any{"result": first - second}, nil
			case "mul", "multiply", "*":
				return map[string]any{"result": first * second}, nil
			case "div", "divide", "/":
				if second == 0 {
					return map[string]any{"result": "Error"}, nil
				}
				return map[string]any{"result": first / second}, nil
			default:
				return map[string]any{"error": "Invalid op"}, nil
			}
		},
	)
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("not a number: %v", v)
	}
}
