package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	intakex "github.com/abhaygunhalkar/insurance-agents/agent/agents/intake"
	supportx "github.com/abhaygunhalkar/insurance-agents/agent/agents/support"
	contractx "github.com/abhaygunhalkar/insurance-agents/agent/contract"
	driverx "github.com/abhaygunhalkar/insurance-agents/agent/driver"
	llmx "github.com/abhaygunhalkar/insurance-agents/agent/llm"
	promptx "github.com/abhaygunhalkar/insurance-agents/agent/prompt"
	runtimex "github.com/abhaygunhalkar/insurance-agents/agent/runtime"
	searchx "github.com/abhaygunhalkar/insurance-agents/agent/search"
	statex "github.com/abhaygunhalkar/insurance-agents/agent/state"
	toolx "github.com/abhaygunhalkar/insurance-agents/agent/tool"
	transcriptx "github.com/abhaygunhalkar/insurance-agents/agent/transcript"
	backendx "github.com/abhaygunhalkar/insurance-agents/pkg/backend"
	configx "github.com/abhaygunhalkar/insurance-agents/pkg/config"
	costtrackx "github.com/abhaygunhalkar/insurance-agents/pkg/costtrack"
	_ "github.com/abhaygunhalkar/insurance-agents/pkg/logger/autoload"
)

// Version info set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
)

// AppConfig holds the top-level settings not owned by a component.
type AppConfig struct {
	VectorStoreHandle string `envconfig:"VECTOR_STORE_HANDLE" split_words:"true" required:"true"`
	SupportAgentID    string `envconfig:"SUPPORT_AGENT_ID" split_words:"true"`
	IntakeAgentID     string `envconfig:"INTAKE_AGENT_ID" split_words:"true"`

	// SessionBackend selects session persistence: "memory" or "redis".
	SessionBackend string `envconfig:"SESSION_BACKEND" split_words:"true" default:"memory"`
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "insurance-agents",
		Short: "Life insurance customer support and lead generation agents",
		Long:  "Runs the FAQ support agent with delegated lead intake over a shared conversation session.",
	}

	cmd.AddCommand(newChatCmd())
	cmd.AddCommand(newSetupCmd())
	cmd.AddCommand(newVersionCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "insurance-agents %s (commit: %s)\n", Version, Commit)
		},
	}
}

func newChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive support conversation",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runChat(ctx, cmd)
		},
	}
}

func runChat(ctx context.Context, cmd *cobra.Command) error {
	appCfg := configx.MustNew[AppConfig]("APP")

	llmCfg := configx.MustNew[llmx.Config]("LLM")
	if err := llmCfg.Validate(); err != nil {
		return err
	}

	backendClient := backendx.MustNew(*configx.MustNew[backendx.Config]("LEAD_BACKEND"))

	searchClient, err := searchx.NewClient(*configx.MustNew[searchx.Config]("VECTOR_STORE"))
	if err != nil {
		return fmt.Errorf("vector store client: %w", err)
	}
	index, err := searchClient.Index(appCfg.VectorStoreHandle)
	if err != nil {
		return fmt.Errorf("vector store handle: %w", err)
	}

	store, err := newSessionStore(appCfg.SessionBackend)
	if err != nil {
		return err
	}

	transcriptStore, err := transcriptx.NewStore(ctx, *configx.MustNew[transcriptx.Config]("TRANSCRIPT"))
	if err != nil {
		return fmt.Errorf("transcript store: %w", err)
	}
	defer transcriptStore.Close()

	costs := costtrackx.NewCalculator()
	defer costs.LogSummary()

	prompts := promptx.LoadPromptSet()

	extractorCfg := llmCfg.OpenRouterFor(llmx.RoleExtractor)
	extractorModel, err := extractorCfg.New(ctx)
	if err != nil {
		return fmt.Errorf("extractor model: %w", err)
	}
	extractor, err := llmx.NewFieldExtractor(ctx, extractorModel, prompts.Extractor)
	if err != nil {
		return fmt.Errorf("field extractor: %w", err)
	}

	intentCfg := llmCfg.OpenRouterFor(llmx.RoleIntent)
	intentModel, err := intentCfg.New(ctx)
	if err != nil {
		return fmt.Errorf("intent model: %w", err)
	}
	classifier, err := llmx.NewIntentClassifier(ctx, intentModel, prompts.Intent)
	if err != nil {
		return fmt.Errorf("intent classifier: %w", err)
	}

	intakeRegistry := toolx.NewRegistry(contractx.AgentTypeLeadIntake)
	if err := toolx.DeclareLeadTools(intakeRegistry, backendClient); err != nil {
		return fmt.Errorf("declare lead tools: %w", err)
	}
	intakeAgent, err := intakex.New(
		intakex.Config{AgentID: appCfg.IntakeAgentID},
		store,
		intakeRegistry,
		extractor,
	)
	if err != nil {
		return fmt.Errorf("lead intake agent: %w", err)
	}

	// The FAQ loop binds only the search tool. The delegation tool lives in
	// a separate registry so the model can never hand off mid-answer; the
	// hand-off is reachable only through the consented delegation route.
	faqRegistry := toolx.NewRegistry(contractx.AgentTypeSupport)
	if err := toolx.DeclareFAQSearch(faqRegistry, index); err != nil {
		return fmt.Errorf("declare faq search: %w", err)
	}
	supportRegistry := toolx.NewRegistry(contractx.AgentTypeSupport)
	if err := toolx.DeclareDelegate(supportRegistry, intakeAgent, ""); err != nil {
		return fmt.Errorf("declare delegate: %w", err)
	}

	supportModelCfg := llmCfg.OpenRouterFor(llmx.RoleSupport)
	supportModel, err := supportModelCfg.New(ctx)
	if err != nil {
		return fmt.Errorf("support model: %w", err)
	}
	supportAgentID := appCfg.SupportAgentID
	if supportAgentID == "" {
		supportAgentID = supportx.DefaultAgentID
	}
	faqLoop, err := runtimex.NewLoop(
		supportAgentID,
		prompts.Support,
		supportModel,
		faqRegistry,
		runtimex.WithCostTracking(costs, supportModelCfg.Model),
	)
	if err != nil {
		return fmt.Errorf("support loop: %w", err)
	}

	supportAgent, err := supportx.New(
		supportx.Config{AgentID: supportAgentID},
		store,
		supportRegistry,
		classifier,
		index,
		faqLoop,
	)
	if err != nil {
		return fmt.Errorf("support agent: %w", err)
	}

	d, err := driverx.New(supportAgent, transcriptStore, cmd.InOrStdin(), cmd.OutOrStdout())
	if err != nil {
		return fmt.Errorf("chat driver: %w", err)
	}

	log.Info().Str("version", Version).Msg("starting chat")
	if err := d.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func newSessionStore(backend string) (statex.Store, error) {
	switch backend {
	case "", "memory":
		return statex.NewMemoryStore(), nil
	case "redis":
		return statex.NewUpstashRedisStore(*configx.MustNew[statex.UpstashRedisConfig]("UPSTASH_REDIS"))
	default:
		return nil, fmt.Errorf("unknown session backend %q", backend)
	}
}

func newSetupCmd() *cobra.Command {
	var faqPath string

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Upload the FAQ document and print the vector store handle",
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := os.ReadFile(faqPath)
			if err != nil {
				return fmt.Errorf("read faq document: %w", err)
			}

			client, err := searchx.NewClient(*configx.MustNew[searchx.Config]("VECTOR_STORE"))
			if err != nil {
				return fmt.Errorf("vector store client: %w", err)
			}

			handle, err := client.Upload(cmd.Context(), filepath.Base(faqPath), content)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Vector store ready.\nSet APP_VECTOR_STORE_HANDLE=%s\n", handle)
			return nil
		},
	}

	cmd.Flags().StringVarP(&faqPath, "file", "f", "data/insurance_faq.md", "path to the FAQ document")
	return cmd
}

func execute(cmd *cobra.Command) int {
	if err := cmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func main() {
	os.Exit(execute(newRootCmd()))
}
