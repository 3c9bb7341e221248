package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/unblockhq/unblock/internal/logger"
	"github.com/unblockhq/unblock/internal/ui"
	"github.com/unblockhq/unblock/models"
)

var seedFixtureFile string

// seedFixture is the YAML shape accepted by --fixture.
type seedFixture struct {
	Agents []struct {
		Name   string `yaml:"name"`
		Role   string `yaml:"role"`
		Pubkey string `yaml:"pubkey"`
	} `yaml:"agents"`
	Tasks []struct {
		Question    string `yaml:"question"`
		Context     string `yaml:"context"`
		Bounty      int64  `yaml:"bounty"`
		PayerPubkey string `yaml:"payerPubkey"`
	} `yaml:"tasks"`
}

func defaultFixture() seedFixture {
	var f seedFixture
	f.Agents = []struct {
		Name   string `yaml:"name"`
		Role   string `yaml:"role"`
		Pubkey string `yaml:"pubkey"`
	}{
		{Name: "publisher-demo", Role: "publisher", Pubkey: "PubDemoPublisher"},
		{Name: "scout-demo", Role: "subscriber", Pubkey: "PubDemoScout"},
		{Name: "reviewer-demo", Role: "supervisor", Pubkey: "PubDemoReviewer"},
	}
	f.Tasks = []struct {
		Question    string `yaml:"question"`
		Context     string `yaml:"context"`
		Bounty      int64  `yaml:"bounty"`
		PayerPubkey string `yaml:"payerPubkey"`
	}{
		{Question: "Is the pharmacy at 5th and Main open right now?", Bounty: 1500, PayerPubkey: "PubDemoPublisher"},
		{Question: "How long is the line at the DMV on Grant Ave?", Bounty: 1000, PayerPubkey: "PubDemoPublisher"},
		{Question: "Does the menu in the window list a lunch special?", Bounty: 800, PayerPubkey: "PubDemoPublisher"},
	}
	return f
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Run a demo marketplace scenario in-process",
	Long: `Seeds the engine with demo agents and tasks, then drives the first
task through the full claim, fulfill, score and verify loop so the trust
effects are visible. Pass --fixture to seed from a YAML file instead of
the built-in demo data.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := *GetConfig()
		log := logger.Nop()
		if cfg.Verbose {
			log = logger.New(cfg.Log)
		}

		fixture := defaultFixture()
		if seedFixtureFile != "" {
			raw, err := os.ReadFile(seedFixtureFile)
			if err != nil {
				return fmt.Errorf("read fixture: %w", err)
			}
			fixture = seedFixture{}
			if err := yaml.Unmarshal(raw, &fixture); err != nil {
				return fmt.Errorf("parse fixture: %w", err)
			}
		}

		eng, err := newEngine(cfg, log)
		if err != nil {
			return err
		}
		defer func() { _ = eng.Close() }()

		ctx := context.Background()

		agentsByRole := map[models.AgentRole][]models.AgentRegistration{}
		for _, a := range fixture.Agents {
			reg := eng.Registry.Register(models.RegisterAgentRequest{
				Name:   a.Name,
				Role:   models.AgentRole(a.Role),
				Pubkey: a.Pubkey,
			})
			agentsByRole[reg.Role] = append(agentsByRole[reg.Role], reg)
		}

		var created []models.Task
		for _, tf := range fixture.Tasks {
			req := models.CreateTaskRequest{
				Question:     tf.Question,
				Context:      tf.Context,
				BountyAmount: tf.Bounty,
				PayerPubkey:  tf.PayerPubkey,
				LockProof:    "SEED_LOCK",
			}
			if pubs := agentsByRole[models.RolePublisher]; len(pubs) > 0 {
				req.PublisherAgentID = pubs[0].AgentID
			}
			task, err := eng.Orchestrator.CreateTask(ctx, req)
			if err != nil {
				return fmt.Errorf("seed task %q: %w", tf.Question, err)
			}
			created = append(created, task)
		}

		// Drive the first task through the full loop when the fixture
		// provides the roles for it.
		subs := agentsByRole[models.RoleSubscriber]
		sups := agentsByRole[models.RoleSupervisor]
		if len(created) > 0 && len(subs) > 0 && len(sups) > 0 {
			if err := runDemoLoop(ctx, eng, created[0], subs[0], sups[0]); err != nil {
				return err
			}
		}

		printSeedSummary(eng)
		return nil
	},
}

func runDemoLoop(ctx context.Context, eng *engine, task models.Task, sub, sup models.AgentRegistration) error {
	if _, err := eng.Orchestrator.Claim(ctx, task.ID, models.ClaimTaskRequest{SubscriberAgentID: sub.AgentID}); err != nil {
		return fmt.Errorf("demo claim: %w", err)
	}
	if _, err := eng.Orchestrator.Fulfill(ctx, task.ID, models.SubmitFulfillmentRequest{
		SubscriberAgentID: sub.AgentID,
		FulfillmentText:   "Checked in person; see attached notes.",
	}); err != nil {
		return fmt.Errorf("demo fulfill: %w", err)
	}
	if _, err := eng.Orchestrator.Score(ctx, task.ID, models.SubmitScoreRequest{
		SupervisorAgentID: sup.AgentID,
		Score:             88,
		Reasoning:         "answer is specific and verifiable",
	}); err != nil {
		return fmt.Errorf("demo score: %w", err)
	}
	// A fresh supervisor routes to review, so adjudicate it too.
	current, err := eng.Tasks.Get(task.ID)
	if err != nil {
		return err
	}
	if current.Status == models.StatusUnderReview {
		if _, err := eng.Orchestrator.Verify(ctx, task.ID, models.SubmitVerificationRequest{
			VerifierPubkey:       "SeedVerifier",
			GroundTruthScore:     90,
			AgreesWithSupervisor: true,
		}); err != nil {
			return fmt.Errorf("demo verify: %w", err)
		}
	}
	return nil
}

func printSeedSummary(eng *engine) {
	tasks, err := eng.Tasks.List("")
	if err != nil {
		PrintError("Failed to list seeded tasks.", err)
		return
	}

	taskTable := ui.Table{
		Headers:  []string{"ID", "Status", "Question", "Bounty"},
		MaxWidth: 48,
	}
	for _, t := range tasks {
		taskTable.Rows = append(taskTable.Rows, []string{
			t.ID[:8], string(t.Status), t.Question, fmt.Sprintf("%d", t.BountyAmount),
		})
	}

	trustTable := ui.Table{
		Headers: []string{"Agent", "Score", "Tier", "TP", "TN", "FP", "FN"},
	}
	for _, rec := range eng.Trust.List() {
		name := rec.AgentID[:8]
		if agent, err := eng.Registry.Get(rec.AgentID); err == nil {
			name = agent.Name
		}
		trustTable.Rows = append(trustTable.Rows, []string{
			name,
			fmt.Sprintf("%.1f", rec.Score),
			ui.RenderTier(eng.Trust.TierInfo(rec.AgentID)),
			fmt.Sprintf("%d", rec.ConfusionMatrix.TP),
			fmt.Sprintf("%d", rec.ConfusionMatrix.TN),
			fmt.Sprintf("%d", rec.ConfusionMatrix.FP),
			fmt.Sprintf("%d", rec.ConfusionMatrix.FN),
		})
	}

	fmt.Println(ui.StyleHeader.Render("Seeded tasks"))
	fmt.Println(taskTable.Render())
	fmt.Println(ui.StyleHeader.Render("Trust records"))
	fmt.Println(trustTable.Render())
}

func init() {
	seedCmd.Flags().StringVar(&seedFixtureFile, "fixture", "", "YAML fixture file with agents and tasks")
	rootCmd.AddCommand(seedCmd)
}
