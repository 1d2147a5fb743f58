// Package exec runs external commands on behalf of generator tools.
//
// An Executor streams a command's output to configurable writers, or hides it
// behind a spinner and replays it only on failure:
//
//	executor := exec.NewExecutor(nil)
//	err := exec.NewGenericCommand(executor, "firebird").
//	    WithArgs("generate", "model", "Invoice").
//	    WithSpinner("Creating storage model").
//	    Run(ctx)
//
// Configured command lines are split with SplitCommandLine.
package exec
