package tin_test

import (
	"fmt"

	"github.com/tinscript/tin/tin"
)

func Example() {
	ctx, err := tin.NewContext(
		tin.AssertHandler(func(f *tin.Fault) bool { return false }),
	)
	if err != nil {
		fmt.Println(err)
		return
	}
	ctx.RegisterNativeFunction("Print", []tin.Kind{tin.KindVoid},
		func(self uintptr, args []tin.Value) (tin.Value, error) {
			if len(args) > 0 {
				fmt.Println(ctx.FormatValue(args[0]))
			}
			return tin.Value{Kind: tin.KindVoid}, nil
		})

	err = ctx.ExecuteText(`
		int Fib(int n) {
			if (n < 2) { return n; }
			return Fib(n-1) + Fib(n-2);
		}
		Print(Fib(10));
	`, "<example>")
	if err != nil {
		fmt.Println(err)
	}
	// Output:
	// 55
}

func Example_schedule() {
	ctx, err := tin.NewContext()
	if err != nil {
		fmt.Println(err)
		return
	}
	ctx.RegisterNativeFunction("Print", []tin.Kind{tin.KindVoid},
		func(self uintptr, args []tin.Value) (tin.Value, error) {
			if len(args) > 0 {
				fmt.Println(ctx.FormatValue(args[0]))
			}
			return tin.Value{Kind: tin.KindVoid}, nil
		})

	if err := ctx.ExecuteText(`schedule(0, 250, Print, "deferred");`, "<example>"); err != nil {
		fmt.Println(err)
		return
	}
	// nothing due yet at t=100
	_ = ctx.UpdateContext(100)
	fmt.Println("before")
	_ = ctx.UpdateContext(300)
	// Output:
	// before
	// deferred
}
