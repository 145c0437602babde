package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"remy/pipeline"
	"remy/tui"
	"remy/www"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow a running server's results in the terminal",
	Run: func(cmd *cobra.Command, args []string) {
		logs := createLoggers()
		client := www.NewClient(serverURL())
		if err := tui.Run(client.WebsocketURL()); err != nil {
			logs.main.Fatal("watch", "error", err)
		}
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show pipeline state, queue depths and the current recipe",
	Run:   runStatus,
}

var stepCmd = &cobra.Command{
	Use:   "step [step]",
	Short: "Set the current recipe step",
	Long: `Set the step the camera checks against. Without an argument, pick one
of the current recipe's steps interactively.`,
	Args: cobra.MaximumNArgs(1),
	Run:  runStep,
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the pipeline on a running server",
	Run: func(cmd *cobra.Command, args []string) {
		logs := createLoggers()
		prompt, _ := cmd.Flags().GetString("system-prompt")
		ctx, cancel := requestContext()
		defer cancel()
		ok, msg, err := www.NewClient(serverURL()).Start(ctx, prompt)
		if err != nil {
			logs.main.Fatal("start", "error", err)
		}
		if !ok {
			logs.main.Warn(msg)
			return
		}
		logs.main.Info("started")
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the pipeline on a running server",
	Run: func(cmd *cobra.Command, args []string) {
		logs := createLoggers()
		ctx, cancel := requestContext()
		defer cancel()
		if err := www.NewClient(serverURL()).Stop(ctx); err != nil {
			logs.main.Fatal("stop", "error", err)
		}
		logs.main.Info("stopped")
	},
}

var cautionCmd = &cobra.Command{
	Use:   "caution <step>",
	Short: "Ask for safety advice about a recipe step",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		logs := createLoggers()
		step := strings.Join(args, " ")
		ctx, cancel := requestContext()
		defer cancel()
		c, err := www.NewClient(serverURL()).Caution(ctx, step)
		if err != nil {
			logs.main.Fatal("caution", "error", err)
		}
		if c == nil {
			fmt.Println("No particular risk.")
			return
		}
		fmt.Println(c.Caution)
		if c.Tip != nil {
			fmt.Println("Tip:", *c.Tip)
		}
	},
}

func init() {
	startCmd.Flags().String("system-prompt", "", "Override the system prompt for this run")
	stepCmd.Flags().StringSlice("recipe", nil, "Set the recipe steps before choosing (repeatable)")
	stepCmd.Flags().String("name", "", "Recipe name used with --recipe")
}

func requestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

func runStatus(cmd *cobra.Command, args []string) {
	logs := createLoggers()
	ctx, cancel := requestContext()
	defer cancel()
	st, err := www.NewClient(serverURL()).Status(ctx)
	if err != nil {
		logs.main.Fatal("status", "error", err)
	}
	renderStatus(os.Stdout, st)
}

func renderStatus(out io.Writer, st pipeline.Status) {
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Key", "Value"})
	table.SetBorder(false)
	table.SetCenterSeparator("|")
	table.SetColumnSeparator("|")
	table.SetRowSeparator("-")
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)

	for _, row := range statusRows(st) {
		table.Append(row)
	}
	table.Render()

	if len(st.Steps) == 0 {
		return
	}
	fmt.Fprintln(out)
	steps := tablewriter.NewWriter(out)
	steps.SetHeader([]string{"#", "Step", ""})
	steps.SetBorder(false)
	steps.SetAutoWrapText(false)
	for i, s := range st.Steps {
		marker := ""
		if s == st.Step {
			marker = "◀"
		}
		steps.Append([]string{fmt.Sprintf("%d", i+1), s, marker})
	}
	steps.Render()
}

func statusRows(st pipeline.Status) [][]string {
	return [][]string{
		{"running", fmt.Sprintf("%v", st.Running)},
		{"recipe", st.Recipe},
		{"step", st.Step},
		{"level", fmt.Sprintf("%.4f", st.Level)},
		{"chunks queued", fmt.Sprintf("%d", st.Queues.Chunks)},
		{"utterances queued", fmt.Sprintf("%d", st.Queues.Utterances)},
		{"speech queued", fmt.Sprintf("%d", st.Queues.Speech)},
		{"check pending", fmt.Sprintf("%d", st.Queues.Checks)},
		{"results queued", fmt.Sprintf("%d", st.Queues.Results)},
		{"stale checks dropped", fmt.Sprintf("%d", st.CheckDrops)},
	}
}

func runStep(cmd *cobra.Command, args []string) {
	logs := createLoggers()
	client := www.NewClient(serverURL())
	ctx, cancel := requestContext()
	defer cancel()

	if recipe, _ := cmd.Flags().GetStringSlice("recipe"); len(recipe) > 0 {
		name, _ := cmd.Flags().GetString("name")
		if err := client.SetRecipe(ctx, name, recipe); err != nil {
			logs.main.Fatal("set recipe", "error", err)
		}
	}

	var step string
	if len(args) == 1 {
		step = args[0]
	} else {
		st, err := client.Status(ctx)
		if err != nil {
			logs.main.Fatal("status", "error", err)
		}
		if len(st.Steps) == 0 {
			logs.main.Fatal("no recipe set; pass a step or --recipe")
		}

		step = st.Step
		options := make([]huh.Option[string], 0, len(st.Steps))
		for i, s := range st.Steps {
			options = append(options, huh.NewOption(fmt.Sprintf("%d. %s", i+1, s), s))
		}
		err = huh.NewSelect[string]().
			Title("Which step are you on?").
			Options(options...).
			Value(&step).
			Run()
		if err != nil {
			logs.main.Fatal("choose step", "error", err)
		}
	}

	if err := client.SetStep(ctx, step); err != nil {
		logs.main.Fatal("set step", "error", err)
	}
	logs.main.Info("current step", "step", step)
}
