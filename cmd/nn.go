package main

import (
	"fmt"
	"math/rand"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/cwbudde/docdenoise/internal/dataset"
	"github.com/cwbudde/docdenoise/internal/nn"
)

var (
	nnLambda   float64
	nnRadius   int
	nnClasses  int
	nnHidden   int
	nnSeed     int64
	nnExamples int
	nnCheck    bool
)

var nnCmd = &cobra.Command{
	Use:   "nn",
	Short: "Inspect the two-layer pixel classifier",
	Long: `Tools for the two-layer sigmoid network that classifies pixels from their
noisy neighborhood: gradient checking and cost evaluation on training pages.`,
}

var gradcheckCmd = &cobra.Command{
	Use:   "gradcheck",
	Short: "Compare backpropagation with numerical gradients",
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := nn.CheckGradients(nnLambda)
		if err != nil {
			return err
		}
		fmt.Printf("Parameters: %d\n", len(res.Analytic))
		fmt.Printf("Relative difference: %.3e\n", res.RelDiff)
		if res.RelDiff > 1e-9 {
			return fmt.Errorf("gradient check failed: relative difference %.3e", res.RelDiff)
		}
		fmt.Println("Gradient check passed")
		return nil
	},
}

var costCmd = &cobra.Command{
	Use:   "cost",
	Short: "Evaluate a random network on the first training page",
	Long: `Builds neighborhood-window examples from the first training pair, draws
random weights and reports the regularized cost, gradient norm and
prediction accuracy. With --check the gradient is verified numerically
on the first examples.`,
	RunE: runCost,
}

func init() {
	nnCmd.PersistentFlags().Float64Var(&nnLambda, "lambda", 0, "Regularization strength")
	costCmd.Flags().IntVar(&nnRadius, "radius", 1, "Window radius (features = (2r+1)^2)")
	costCmd.Flags().IntVar(&nnClasses, "classes", 2, "Number of intensity classes")
	costCmd.Flags().IntVar(&nnHidden, "hidden", 25, "Hidden units")
	costCmd.Flags().Int64Var(&nnSeed, "seed", 42, "Random seed for the weights")
	costCmd.Flags().IntVar(&nnExamples, "examples", 0, "Use only the first N examples (0 = all)")
	costCmd.Flags().BoolVar(&nnCheck, "check", false, "Also run a numerical gradient check")

	nnCmd.AddCommand(gradcheckCmd)
	nnCmd.AddCommand(costCmd)
	rootCmd.AddCommand(nnCmd)
}

func runCost(cmd *cobra.Command, args []string) error {
	pairs, err := cfg.Data.TrainingPairs()
	if err != nil {
		return err
	}
	if len(pairs) == 0 {
		return fmt.Errorf("no training pairs in %s and %s", cfg.Data.NoisyDir, cfg.Data.CleanDir)
	}
	clean, noisy, err := dataset.Files(pairs).Load(0)
	if err != nil {
		return err
	}

	x, y, err := nn.Windows(noisy, clean, nnRadius, nnClasses)
	if err != nil {
		return err
	}
	m, n := x.Dims()
	if nnExamples > 0 && nnExamples < m {
		x = x.Slice(0, nnExamples, 0, n).(*mat.Dense)
		y = y[:nnExamples]
		m = nnExamples
	}

	s := nn.Shape{Input: n, Hidden: nnHidden, Labels: nnClasses}
	rng := rand.New(rand.NewSource(nnSeed))
	params := nn.RandInitParams(s, rng)

	cost, grad, err := nn.CostFunction(params, s, x, y, nnLambda)
	if err != nil {
		return err
	}
	t1, t2, err := nn.Reshape(params, s)
	if err != nil {
		return err
	}
	pred := nn.Predict(t1, t2, x)
	correct := 0
	for i, p := range pred {
		if p == y[i] {
			correct++
		}
	}

	fmt.Printf("Page: %s\n", dataset.Stem(pairs[0].B))
	fmt.Printf("Examples: %d x %d features, %d classes, %d hidden\n", m, n, nnClasses, nnHidden)
	fmt.Printf("Cost: %.6f\n", cost)
	fmt.Printf("Gradient norm: %.6f\n", floats.Norm(grad, 2))
	fmt.Printf("Accuracy: %.2f%%\n", 100*float64(correct)/float64(m))

	if nnCheck {
		k := min(m, 20)
		res, err := nn.RandomCheck(s, x.Slice(0, k, 0, n), y[:k], nnLambda, rng)
		if err != nil {
			return err
		}
		fmt.Printf("Gradient check on %d examples: relative difference %.3e\n", k, res.RelDiff)
	}
	return nil
}
