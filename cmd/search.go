package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spigell/rozgar/internal/ai"
	"github.com/spigell/rozgar/internal/jobs"
	"github.com/spigell/rozgar/internal/matching"
	"go.uber.org/zap"
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search jobs by filters or by a spoken request",
	Run: func(cmd *cobra.Command, _ []string) {
		runSearch(cmd)
	},
}

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().String("role", "", "role or keyword to look for")
	searchCmd.Flags().String("location", "", "location substring")
	searchCmd.Flags().String("category", "", "exact category")
	searchCmd.Flags().Float64("min-wage", 0, "minimum wage")
	searchCmd.Flags().Float64("radius", 0, "radius in km (1-20)")
	searchCmd.Flags().StringP("voice", "v", "", "search with a transcript instead of filters")
	searchCmd.Flags().String("lang", "hi-IN", "language hint for --voice")
}

func runSearch(cmd *cobra.Command) {
	ctx := context.Background()
	config, logger := setup()
	defer logger.Sync()

	svc, err := newServices(ctx, config, logger)
	if err != nil {
		logger.Fatal("starting services", zap.Error(err))
	}
	defer svc.Close()

	flags := cmd.Flags()
	radius, _ := flags.GetFloat64("radius")

	var found []*jobs.Job
	if transcript, _ := flags.GetString("voice"); transcript != "" {
		lang, _ := flags.GetString("lang")
		result, err := svc.engine.SearchByVoice(ctx, nil, matching.VoiceQuery{Transcript: transcript, Lang: lang, Radius: radius})
		if err != nil {
			logger.Fatal("voice search", zap.Error(err))
		}
		logger.Info("understood", zap.String("intent", result.Intent.Intent), zap.String("role", result.Intent.Role), zap.String("location", result.Intent.Location))
		found = result.Jobs
	} else {
		q := matching.Query{Radius: radius}
		q.Role, _ = flags.GetString("role")
		q.Location, _ = flags.GetString("location")
		q.Category, _ = flags.GetString("category")
		q.MinWage, _ = flags.GetFloat64("min-wage")

		statuses, err := svc.engine.Explain(q)
		if err != nil {
			logger.Fatal("invalid search", zap.Error(err))
		}
		for _, st := range statuses {
			logger.Debug("filter status",
				zap.String("name", st.Name),
				zap.Bool("enabled", st.Enabled),
				zap.String("reason", st.Reason),
				zap.Any("details", st.Details),
			)
		}

		list, err := svc.engine.Search(ctx, q)
		if err != nil {
			logger.Fatal("search", zap.Error(err))
		}
		found = list.Items
	}

	if len(found) == 0 {
		logger.Info("exiting", zap.String("reason", "no jobs found"))
		return
	}
	printJobs(found)
}

func printJobs(list []*jobs.Job) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tWAGE\tLOCATION\tDISTANCE\tURGENT\tSTATUS")
	for _, j := range list {
		distance := "-"
		if j.Distance != nil {
			distance = fmt.Sprintf("%.1f km", *j.Distance)
		}
		fmt.Fprintf(w, "%s\t%s\t%s/%s\t%s\t%s\t%t\t%s\n",
			j.ID, j.Title, ai.FormatWage(j.Wage), j.WageType, j.Location, distance, j.Urgent, j.Status)
	}
	w.Flush()
}
