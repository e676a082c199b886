// internal/service/inventory/infrastructure/rule/cel_policy.go
package rule

import (
	"context"
	"fmt"

	"github.com/google/cel-go/cel"
)

// CELPolicyAdapter 是 port.ReservationPolicy 接口的 CEL 实现。
// 策略是一条返回 bool 的表达式，可用变量为 product_id 和 quantity，
// 例如 "quantity <= 10" 或 `product_id == "p-limited" ? quantity <= 2 : true`。
// 表达式在创建适配器时编译一次，之后的求值是纯内存操作。
type CELPolicyAdapter struct {
	program cel.Program
}

// NewCELPolicyAdapter 编译表达式并创建适配器。
// 表达式语法错误或结果类型不是 bool 时立即报错，避免把坏规则带到运行期。
func NewCELPolicyAdapter(expression string) (*CELPolicyAdapter, error) {
	env, err := cel.NewEnv(
		cel.Variable("product_id", cel.StringType),
		cel.Variable("quantity", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("invalid reservation policy %q: %w", expression, issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("reservation policy %q must evaluate to bool, got %s", expression, ast.OutputType())
	}

	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to build CEL program: %w", err)
	}

	return &CELPolicyAdapter{program: program}, nil
}

// Allow 对一次预占请求求值。
func (a *CELPolicyAdapter) Allow(ctx context.Context, productID string, quantity int64) (bool, error) {
	out, _, err := a.program.ContextEval(ctx, map[string]interface{}{
		"product_id": productID,
		"quantity":   quantity,
	})
	if err != nil {
		return false, fmt.Errorf("reservation policy evaluation failed: %w", err)
	}

	allowed, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("unexpected result type from reservation policy: %T", out.Value())
	}
	return allowed, nil
}
