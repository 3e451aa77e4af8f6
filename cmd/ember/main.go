// Command ember compiles a demo classifier, drives a batched run over a
// synthetic dataset, and saves the compiled model as a standalone bundle.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
	"k8s.io/klog/v2"

	"github.com/ember-ml/ember/backend"
	"github.com/ember-ml/ember/engine"
	"github.com/ember-ml/ember/graph"
	"github.com/ember-ml/ember/tensor"
)

const (
	batchSize = 32
	features  = 16
	hidden    = 32
	classes   = 10
	samples   = 512
)

func main() {
	backendName := flag.String("backend", "cpu", "backend to compile for (interpreter, cpu)")
	iterations := flag.Uint("iterations", 100, "batched execution steps to drive")
	outDir := flag.String("out", "ember-out", "directory to save the bundle into")
	klog.InitFlags(nil)
	flag.Parse()

	if err := run(*backendName, *iterations, *outDir); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

func run(backendName string, iterations uint, outDir string) error {
	kind, ok := backend.ParseKind(backendName)
	if !ok {
		return fmt.Errorf("unknown backend %q", backendName)
	}

	f, in := buildModel()
	e := engine.New(kind)
	if err := e.Compile(backend.Training, f); err != nil {
		return fmt.Errorf("compiling %s: %w", f.Name(), err)
	}
	klog.Infof("compiled %s for %s: %d instructions", f.Name(), kind, len(e.Program().Instrs()))

	dataset := tensor.Randn(tensor.Shape{samples, features})
	bar := progressbar.NewOptions(int(iterations),
		progressbar.OptionSetDescription("running"),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("steps"),
	)
	for i := uint(0); i < iterations; i++ {
		e.RunBatch(1, []*graph.Variable{in}, []*tensor.RawTensor{dataset})
		_ = bar.Add(1)
	}
	fmt.Println()

	if err := e.Save(backend.Inference, f, outDir); err != nil {
		return fmt.Errorf("saving bundle: %w", err)
	}
	return report(outDir, f.Name())
}

// buildModel constructs a two-layer MLP classifier with random weights.
func buildModel() (*graph.Function, *graph.Variable) {
	f := graph.NewFunction("classifier")

	in := f.AddVariable("in", tensor.Shape{batchSize, features}, tensor.Float32, graph.Public)
	w1 := f.AddVariable("w1", tensor.Shape{features, hidden}, tensor.Float32, graph.Private)
	b1 := f.AddVariable("b1", tensor.Shape{hidden}, tensor.Float32, graph.Private)
	w2 := f.AddVariable("w2", tensor.Shape{hidden, classes}, tensor.Float32, graph.Private)
	b2 := f.AddVariable("b2", tensor.Shape{classes}, tensor.Float32, graph.Private)
	out := f.AddVariable("out", tensor.Shape{batchSize, classes}, tensor.Float32, graph.Public)

	w1.SetPayload(tensor.Randn(tensor.Shape{features, hidden}))
	w2.SetPayload(tensor.Randn(tensor.Shape{hidden, classes}))

	h := f.Relu(f.FullyConnected(in, w1, b1))
	f.Save(f.Softmax(f.FullyConnected(h, w2, b2)), out)
	return f, in
}

func report(dir, name string) error {
	total := int64(0)
	for _, suffix := range []string{".json", ".weights", ".prog"} {
		info, err := os.Stat(filepath.Join(dir, name+suffix))
		if err != nil {
			return err
		}
		fmt.Printf("  %-20s %s\n", info.Name(), humanize.Bytes(uint64(info.Size())))
		total += info.Size()
	}
	fmt.Printf("saved bundle %q to %s (%s)\n", name, dir, humanize.Bytes(uint64(total)))
	return nil
}
