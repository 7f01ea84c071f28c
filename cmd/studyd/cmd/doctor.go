package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/OhItsLena/coding-study-test-sub000/pkg/dlogger"
	"github.com/OhItsLena/coding-study-test-sub000/pkg/gitremote"
	"github.com/OhItsLena/coding-study-test-sub000/pkg/metadata"
	"github.com/OhItsLena/coding-study-test-sub000/pkg/model"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the study environment",
	Long: `Doctor resolves the participant identity and probes the remote
repositories this host needs, printing one line per check.`,
	Run: func(cmd *cobra.Command, args []string) {
		runDoctor()
	},
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor() {
	logger, err := dlogger.GetLogger(config.LogLevel, config.Dev)
	if err != nil {
		logFatalln(err)
	}
	ctx := context.Background()

	metaOpts := []metadata.Option{metadata.WithLogger(logger)}
	if config.Dev && config.DevParticipant != "" {
		metaOpts = append(metaOpts, metadata.WithDevOverrides(config.DevParticipant, model.Stage(config.DevStage)))
	}
	meta := metadata.New(metaOpts...)

	participantID := meta.ParticipantID(ctx)
	stage := meta.StudyStage(ctx)
	fmt.Printf("participant: %s\n", participantID)
	fmt.Printf("stage:       %d\n", int(stage))
	fmt.Printf("condition:   %s\n", metadata.Condition(participantID))

	token := config.Token()
	if token == "" {
		fmt.Println("token:       not set (local-only mode)")
		return
	}
	fmt.Println("token:       set")

	prober := gitremote.NewProber(gitremote.WithLogger(logger))
	for _, purpose := range []model.Purpose{model.PurposeStudy, model.PurposeTutorial, model.PurposeLogs} {
		repoName := model.RepoName(participantID, purpose)
		if err := prober.CheckRepository(ctx, config.Org, token, repoName); err != nil {
			fmt.Printf("remote %-28s unreachable: %v\n", repoName+":", err)
			continue
		}
		fmt.Printf("remote %-28s ok\n", repoName+":")
	}
}
