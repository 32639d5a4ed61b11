package agent

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/google/uuid"

	"github.com/civicpulse/civicpulse/pkg/apperr"
	"github.com/civicpulse/civicpulse/pkg/artifact"
	"github.com/civicpulse/civicpulse/pkg/catalog"
	"github.com/civicpulse/civicpulse/pkg/cluster"
	"github.com/civicpulse/civicpulse/pkg/llm"
)

// Orchestrator coordinates one session per Run call. All fields are
// shared, read-mostly process state; per-session state lives on the
// goroutine stack.
type Orchestrator struct {
	llm       llm.Client
	catalog   *catalog.Registry
	store     *artifact.Store
	predictor *cluster.Predictor // nil when centroid storage is not configured
	planner   *Planner
	analyzer  *Analyzer
	domain    *regexp.Regexp
	logger    *slog.Logger
}

func NewOrchestrator(lc llm.Client, reg *catalog.Registry, store *artifact.Store, predictor *cluster.Predictor, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		llm:       lc,
		catalog:   reg,
		store:     store,
		predictor: predictor,
		planner:   NewPlanner(lc, reg, store, logger),
		analyzer:  NewAnalyzer(lc, logger),
		domain:    DefaultDomainPattern,
		logger:    logger.With("component", "orchestrator"),
	}
}

// SetDomainPattern overrides the vocabulary pattern that triggers
// cluster highlighting in chat mode.
func (o *Orchestrator) SetDomainPattern(re *regexp.Regexp) {
	o.domain = re
}

// Run starts a session and returns its event stream. The channel is
// closed when the session terminates; a cancelled context stops the
// session without a terminal event.
func (o *Orchestrator) Run(ctx context.Context, question string, mode Mode) <-chan Event {
	events := make(chan Event, eventBuffer)
	log := o.logger.With("session_id", uuid.NewString())
	go func() {
		defer close(events)
		defer func() {
			if r := recover(); r != nil {
				log.Error("session panicked", "panic", r)
				o.emitError(ctx, events, fmt.Errorf("internal error: %v", r), log)
			}
		}()
		o.run(ctx, events, question, mode, log)
	}()
	return events
}

func (o *Orchestrator) run(ctx context.Context, events chan<- Event, question string, mode Mode, log *slog.Logger) {
	if !emit(ctx, events, Event{Type: EventUser, Content: question}) {
		return
	}

	if mode == ModeAuto {
		if analysisToken.MatchString(question) {
			// The client re-posts the question with an explicit mode
			// after the user confirms; no server-side state is kept.
			emit(ctx, events, Event{Type: EventConfirmation, Content: "Deep analysis?"})
			return
		}
		mode = ModeChat
	}

	switch mode {
	case ModeDeepAnalysis:
		o.runDeepAnalysis(ctx, events, question, log)
	default:
		o.runChat(ctx, events, question, log)
	}
}

// runDeepAnalysis is the plan, load, analyze pipeline. Event order is
// part of the client contract: navigation must precede answer so the
// chart view is mounted before the answer renders, and error is
// terminal with no complete after it.
func (o *Orchestrator) runDeepAnalysis(ctx context.Context, events chan<- Event, question string, log *slog.Logger) {
	if !emit(ctx, events, Event{Type: EventThought, Content: "Planning"}) {
		return
	}

	plan, err := o.planner.Plan(ctx, question)
	if err != nil {
		o.emitError(ctx, events, err, log)
		return
	}
	if !emit(ctx, events, Event{Type: EventPlan, Content: "Selected data products:", Data: map[string]any{"plan": plan}}) {
		return
	}

	summaries := make([]*artifact.Summary, 0, len(plan))
	navigated := false
	for _, entry := range plan {
		if !emit(ctx, events, Event{Type: EventThought, Content: fmt.Sprintf("Loading %s", entry.Product)}) {
			return
		}
		summary, err := o.store.LoadSummary(ctx, entry.Product)
		if err != nil {
			o.emitError(ctx, events, err, log)
			return
		}
		summaries = append(summaries, summary)

		if navigated {
			continue
		}
		product, err := o.catalog.Get(entry.Product)
		if err == nil && product.RouteHint != "" {
			ev := Event{
				Type:    EventNavigation,
				Content: fmt.Sprintf("Navigating to %s view", entry.Product),
				Data:    map[string]any{"url": product.RouteHint},
			}
			if !emit(ctx, events, ev) {
				return
			}
			navigated = true
		}
	}

	if !emit(ctx, events, Event{Type: EventThought, Content: "Analyzing"}) {
		return
	}
	result, err := o.analyzer.Analyze(ctx, question, plan, summaries)
	if err != nil {
		o.emitError(ctx, events, err, log)
		return
	}
	ev := Event{
		Type:    EventAnswer,
		Content: result.Answer,
		Data: map[string]any{
			"rationale":   result.Rationale,
			"key_metrics": result.KeyMetrics,
		},
	}
	if !emit(ctx, events, ev) {
		return
	}

	if o.predictor != nil {
		prediction, err := o.predictor.Predict(ctx, question)
		if err != nil {
			o.emitError(ctx, events, err, log)
			return
		}
		if !o.emitPrediction(ctx, events, prediction) {
			return
		}
	}

	emit(ctx, events, Event{Type: EventComplete, Content: "Analysis complete"})
}

const chatPrompt = `You are an intelligent assistant to the Mayor, specializing in municipal service requests and CRM data.

You have knowledge about:
- Municipal service request categories (roads, traffic, sidewalks, recreation, parks, etc.)
- Service request lifecycle and management
- Common municipal operations and priorities
- How cities handle citizen requests and complaints

The user is asking you a question. Reply in 1-3 short sentences only. Be as brief as possible while still helpful. No long explanations.

If the user asks about specific data or analytics, say they can use "analysis" for deep data analysis.

USER QUESTION:
%s

Your response:`

// runChat answers directly with the assistant persona. Domain
// vocabulary in the question additionally triggers a cluster
// prediction and glow hint ahead of the reply so the UI can highlight
// the related chart region before subtitles appear.
func (o *Orchestrator) runChat(ctx context.Context, events chan<- Event, question string, log *slog.Logger) {
	if o.predictor != nil && o.domain != nil && o.domain.MatchString(question) {
		prediction, err := o.predictor.Predict(ctx, question)
		if err != nil {
			// Highlighting is best effort in chat; the reply still goes out.
			log.Warn("chat cluster prediction failed", "error", err)
		} else {
			if !o.emitPrediction(ctx, events, prediction) {
				return
			}
			if !emit(ctx, events, Event{Type: EventGlowOn, Content: "Highlighting related clusters"}) {
				return
			}
		}
	}

	reply, err := o.llm.GenerateText(ctx, fmt.Sprintf(chatPrompt, question))
	if err != nil {
		o.emitError(ctx, events, err, log)
		return
	}
	if !emit(ctx, events, Event{Type: EventChat, Content: reply}) {
		return
	}
	emit(ctx, events, Event{Type: EventComplete, Content: "Done"})
}

func (o *Orchestrator) emitPrediction(ctx context.Context, events chan<- Event, p cluster.Prediction) bool {
	parentLabel, _ := o.predictor.Labels(p.ParentID, p.ChildID)
	return emit(ctx, events, Event{
		Type:    EventClusterPrediction,
		Content: fmt.Sprintf("Related cluster: %s", parentLabel),
		Data: map[string]any{
			"parent_cluster_id": p.ParentID,
			"child_cluster_id":  p.ChildID,
			"confidence":        p.Confidence,
		},
	})
}

// emitError surfaces a terminal error event. No complete follows; the
// error itself closes the session.
func (o *Orchestrator) emitError(ctx context.Context, events chan<- Event, err error, log *slog.Logger) {
	if ctx.Err() != nil {
		// Client went away; the failure is the cancellation itself.
		return
	}
	log.Error("session failed", "kind", apperr.KindOf(err), "error", err)
	emit(ctx, events, Event{
		Type:    EventError,
		Content: apperr.MessageOf(err),
		Data:    map[string]any{"kind": string(apperr.KindOf(err))},
	})
}
