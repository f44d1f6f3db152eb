package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spigell/rozgar/internal/jobs"
	"github.com/spigell/rozgar/internal/repository"
	"github.com/spigell/rozgar/internal/session"
	"go.uber.org/zap"
)

const (
	PromptBack              = "back"
	PromptExit              = "Exit"
	PromptReportByEmployers = "Report by employers"
)

var errExit = errors.New("exit requested")

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Review applicants of an employer's jobs interactively",
	Run: func(cmd *cobra.Command, _ []string) {
		phone, _ := cmd.Flags().GetString("phone")
		runReview(phone)
	},
}

func init() {
	rootCmd.AddCommand(reviewCmd)

	reviewCmd.Flags().StringP("phone", "p", "", "phone number of the employer")
	reviewCmd.MarkFlagRequired("phone")
}

func runReview(phone string) {
	ctx := context.Background()
	config, logger := setup()
	defer logger.Sync()

	svc, err := newServices(ctx, config, logger)
	if err != nil {
		logger.Fatal("starting services", zap.Error(err))
	}
	defer svc.Close()

	employer, err := svc.repo.UserByPhone(ctx, phone)
	if err != nil {
		logger.Fatal("finding employer", zap.Error(err), zap.String("hint", "run the seed command for demo employers 9000000001-9000000003"))
	}
	if employer.Role != jobs.RoleEmployer {
		logger.Fatal("phone belongs to a worker", zap.String("phone", phone))
	}
	sess := &session.Session{UserID: employer.ID, Role: employer.Role, Name: employer.Name, Phone: employer.Phone}

	logger.Info("reviewing jobs", zap.String("employer", employer.DisplayName()), zap.String("policy", string(svc.tracker.Policy())))

	for {
		if err := reviewRound(ctx, svc, sess); err != nil {
			if errors.Is(err, errExit) {
				return
			}
			logger.Fatal("exiting", zap.Error(err))
		}
	}
}

func reviewRound(ctx context.Context, svc *services, sess *session.Session) error {
	own, err := svc.repo.ByEmployer(ctx, sess.UserID)
	if err != nil {
		return err
	}

	items := make([]string, 0, own.Len()+2)
	for _, j := range own.Items {
		items = append(items, fmt.Sprintf("%s | %s | %d applicants | %s", j.ID, j.Title, len(j.Applicants), j.Status))
	}
	items = append(items, PromptReportByEmployers, PromptExit)

	idx, action, err := (&promptui.Select{Label: "Select a job", Items: items, Size: 10}).Run()
	if err != nil {
		return err
	}

	switch action {
	case PromptExit:
		svc.logger.Info("exiting", zap.String("reason", "got exit from prompt"))
		return errExit
	case PromptReportByEmployers:
		all, err := svc.repo.List(ctx, repository.Filter{})
		if err != nil {
			return err
		}
		pretty, _ := json.MarshalIndent(all.ReportByEmployer(), "", "  ")
		fmt.Println(string(pretty))
		return nil
	default:
		return reviewJob(ctx, svc, sess, own.Items[idx])
	}
}

func reviewJob(ctx context.Context, svc *services, sess *session.Session, job *jobs.Job) error {
	apps, err := svc.tracker.ListApplicants(ctx, sess, job.ID)
	if err != nil {
		return err
	}
	if len(apps) == 0 {
		svc.logger.Info("no applicants yet", zap.String("job", job.Title))
		return nil
	}

	items := make([]string, 0, len(apps)+1)
	for _, a := range apps {
		items = append(items, fmt.Sprintf("%s | %s | %s | %s", a.WorkerName, a.WorkerPhone, a.WorkerExperience, a.Status))
	}
	items = append(items, PromptBack)

	idx, choice, err := (&promptui.Select{Label: "Applicants of " + job.Title, Items: items}).Run()
	if err != nil {
		return err
	}
	if choice == PromptBack {
		return nil
	}
	app := apps[idx]

	statuses := []string{
		string(jobs.ApplicationInterview),
		string(jobs.ApplicationHired),
		string(jobs.ApplicationRejected),
		PromptBack,
	}
	_, picked, err := (&promptui.Select{Label: "New status for " + app.WorkerName, Items: statuses}).Run()
	if err != nil {
		return err
	}
	if picked == PromptBack {
		return nil
	}

	status, err := jobs.ParseApplicationStatus(picked)
	if err != nil {
		return err
	}
	_, updated, err := svc.tracker.SetStatus(ctx, sess, job.ID, app.WorkerID, status, 0)
	switch {
	case errors.Is(err, jobs.ErrTerminalStatus), errors.Is(err, jobs.ErrInvalidTransition):
		svc.logger.Warn("status not changed", zap.Error(err))
		return nil
	case err != nil:
		return err
	}

	svc.logger.Info("status updated",
		zap.String("worker", updated.WorkerName),
		zap.String("status", string(updated.Status)),
	)
	return nil
}
