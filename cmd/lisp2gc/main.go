// lisp2gc drives the vm package through the scenarios from the
// specification and prints the diagnostic line of the forced collection
// that ends each scenario.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/munificent/lisp2-gc/vm"
)

func main() {
	variantFlag := flag.String("variant", "reallocating", "collector strategy: fixed or reallocating")
	scenario := flag.String("scenario", "all", "scenario to run: stack, dead, nested, cycle, churn, growth, all")
	configPath := flag.String("config", "", "optional TOML file of tuning constants (see vm.RuntimeConfig)")
	historyPath := flag.String("history", "", "optional path to a SQLite file recording every collection")
	dump := flag.Bool("dump", false, "print the CBOR-encoded size and the text rendering of the final root stack graph to stdout")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: lisp2gc [options]\n\n")
		fmt.Fprintf(os.Stderr, "Runs LISP2 mark-compact GC scenarios against a toy object heap.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  lisp2gc -variant fixed -scenario nested\n")
		fmt.Fprintf(os.Stderr, "  lisp2gc -scenario growth -history run.db\n")
	}
	flag.Parse()

	variant, err := parseVariant(*variantFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	cfg := vm.DefaultConfig()
	if *configPath != "" {
		cfg, err = vm.LoadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	rt, err := vm.NewRuntimeWithConfig(cfg, variant)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *historyPath != "" {
		log, err := vm.OpenHistoryLog(*historyPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer log.Close()
		rt.AttachHistory(log)
	}

	names, err := scenarioNames(*scenario)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	for _, name := range names {
		if err := runScenario(rt, name); err != nil {
			fmt.Fprintf(os.Stderr, "Error running scenario %q: %v\n", name, err)
			os.Exit(1)
		}
	}

	if *dump {
		snap := rt.Snapshot()
		data, err := vm.EncodeSnapshot(snap)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error encoding snapshot: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("snapshot: %d bytes, graph = %s\n", len(data), rt.Print())
	}

	rt.Free()
}

func parseVariant(s string) (vm.Variant, error) {
	switch s {
	case "fixed":
		return vm.FixedHeap, nil
	case "reallocating":
		return vm.Reallocating, nil
	default:
		return 0, fmt.Errorf("unknown variant %q (want fixed or reallocating)", s)
	}
}

func scenarioNames(s string) ([]string, error) {
	all := []string{"stack", "dead", "nested", "cycle", "churn", "growth"}
	if s == "all" {
		return all, nil
	}
	for _, name := range all {
		if s == name {
			return []string{s}, nil
		}
	}
	return nil, fmt.Errorf("unknown scenario %q", s)
}

func runScenario(rt *vm.Runtime, name string) error {
	switch name {
	case "stack":
		return scenarioStack(rt)
	case "dead":
		return scenarioDead(rt)
	case "nested":
		return scenarioNested(rt)
	case "cycle":
		return scenarioCycle(rt)
	case "churn":
		return scenarioChurn(rt)
	case "growth":
		return scenarioGrowth(rt)
	default:
		return fmt.Errorf("unknown scenario %q", name)
	}
}

func collectAndReport(rt *vm.Runtime, label string) error {
	stats, err := rt.GC(0)
	if err != nil {
		return err
	}
	fmt.Printf("[%s] %s\n", label, stats.Summary())
	return nil
}

func scenarioStack(rt *vm.Runtime) error {
	if err := rt.PushInt(1); err != nil {
		return err
	}
	if err := rt.PushInt(2); err != nil {
		return err
	}
	return collectAndReport(rt, "stack")
}

func scenarioDead(rt *vm.Runtime) error {
	if err := rt.PushInt(1); err != nil {
		return err
	}
	if err := rt.PushInt(2); err != nil {
		return err
	}
	if _, err := rt.Pop(); err != nil {
		return err
	}
	if _, err := rt.Pop(); err != nil {
		return err
	}
	return collectAndReport(rt, "dead")
}

func scenarioNested(rt *vm.Runtime) error {
	if err := rt.PushInt(1); err != nil {
		return err
	}
	if err := rt.PushInt(2); err != nil {
		return err
	}
	if _, err := rt.PushPair(); err != nil { // P1 = (1 . 2)
		return err
	}
	if err := rt.PushInt(3); err != nil {
		return err
	}
	if err := rt.PushInt(4); err != nil {
		return err
	}
	if _, err := rt.PushPair(); err != nil { // P2 = (3 . 4)
		return err
	}
	if _, err := rt.PushPair(); err != nil { // P3 = (P1 . P2)
		return err
	}
	return collectAndReport(rt, "nested")
}

func scenarioCycle(rt *vm.Runtime) error {
	if err := rt.PushInt(1); err != nil {
		return err
	}
	if err := rt.PushInt(2); err != nil {
		return err
	}
	a, err := rt.PushPair() // A = (1 . 2)
	if err != nil {
		return err
	}
	if err := rt.PushInt(3); err != nil {
		return err
	}
	if err := rt.PushInt(4); err != nil {
		return err
	}
	b, err := rt.PushPair() // B = (3 . 4)
	if err != nil {
		return err
	}
	if err := rt.LinkTails(a, b); err != nil {
		return err
	}
	if err := rt.LinkTails(b, a); err != nil {
		return err
	}
	return collectAndReport(rt, "cycle")
}

func scenarioChurn(rt *vm.Runtime) error {
	const iterations = 100000
	for i := 0; i < iterations; i++ {
		for j := 0; j < 20; j++ {
			if err := rt.PushInt(int64(j)); err != nil {
				return err
			}
		}
		for j := 0; j < 20; j++ {
			if _, err := rt.Pop(); err != nil {
				return err
			}
		}
	}
	return collectAndReport(rt, "churn")
}

func scenarioGrowth(rt *vm.Runtime) error {
	const n = 100
	for i := 0; i < n; i++ {
		if err := rt.PushInt(int64(i)); err != nil {
			return err
		}
	}
	return collectAndReport(rt, "growth")
}
