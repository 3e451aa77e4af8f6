// Command ember-run loads a saved bundle and executes it standalone, without
// the compiler: it feeds synthetic data into the bundle's mutable inputs,
// runs the program, and prints the predicted class per row of the result.
package main

import (
	"flag"
	"fmt"
	"math/rand"

	"github.com/dustin/go-humanize"
	"k8s.io/klog/v2"

	"github.com/ember-ml/ember/bundle"
)

func main() {
	dir := flag.String("dir", "ember-out", "directory holding the bundle")
	name := flag.String("name", "classifier", "bundle name")
	klog.InitFlags(nil)
	flag.Parse()

	// A weights blob that does not match the configuration byte for byte
	// means mismatched artifact files; running would read garbage.
	b, err := bundle.Load(*dir, *name)
	if err != nil {
		klog.Fatalf("loading bundle %q: %v", *name, err)
	}
	cfg := b.Config
	fmt.Printf("bundle %q: %s constants, %s mutable, %s activations\n",
		cfg.Name,
		humanize.Bytes(uint64(cfg.ConstantWeightsSize)),
		humanize.Bytes(uint64(cfg.MutableWeightsSize)),
		humanize.Bytes(uint64(cfg.ActivationsSize)))

	ex, err := bundle.NewExecutor(b)
	if err != nil {
		klog.Fatalf("preparing executor: %v", err)
	}

	for _, sym := range cfg.Symbols {
		if sym.Kind != bundle.KindMutable || sym.Name == cfg.ResultName {
			continue
		}
		data := make([]float32, sym.Size/4)
		for i := range data {
			data[i] = rand.Float32()
		}
		if err := ex.SetInput(sym.Name, data); err != nil {
			klog.Fatalf("feeding input %q: %v", sym.Name, err)
		}
		klog.V(1).Infof("fed %d random values into %q", len(data), sym.Name)
	}

	if err := ex.Run(); err != nil {
		klog.Fatalf("executing bundle: %v", err)
	}

	printPredictions(cfg, ex.Result())
}

// printPredictions treats the result as [rows, classes] scores and reports
// the argmax per row.
func printPredictions(cfg *bundle.Config, result []float32) {
	sym, ok := cfg.Symbol(cfg.ResultName)
	if !ok || len(sym.Shape) != 2 {
		fmt.Printf("result (%d values): %v\n", len(result), result)
		return
	}

	rows, cols := sym.Shape[0], sym.Shape[1]
	for r := 0; r < rows; r++ {
		row := result[r*cols : (r+1)*cols]
		best := 0
		for c, v := range row {
			if v > row[best] {
				best = c
			}
		}
		fmt.Printf("row %2d: class %d (%.4f)\n", r, best, row[best])
	}
}
