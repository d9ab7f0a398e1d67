// Package server wires all MCP components and creates the server
// instance.
//
// This is the composition root: it opens the database, creates the
// stores and the scheduler, and injects them into the tool and
// resource handlers. No business logic lives here — only wiring.
package server

import (
	"fmt"
	"log"

	"github.com/mark3labs/mcp-go/server"
	"github.com/stridemcp/stride/internal/activity"
	"github.com/stridemcp/stride/internal/config"
	"github.com/stridemcp/stride/internal/memory"
	"github.com/stridemcp/stride/internal/memtools"
	"github.com/stridemcp/stride/internal/plan"
	"github.com/stridemcp/stride/internal/plantools"
	"github.com/stridemcp/stride/internal/resources"
	"github.com/stridemcp/stride/internal/storage"
)

// Version is set at build time via ldflags.
var Version = "dev"

// New creates and configures the MCP server with all tools and
// resources registered. This is the single place where all
// dependencies are resolved.
//
// The returned cleanup function closes the database connection and
// must be called on shutdown (typically via defer). It is always
// non-nil and safe to call.
func New(cfg config.Config) (*server.MCPServer, func(), error) {
	db, err := storage.Open(cfg.DataDir)
	if err != nil {
		return nil, noop, fmt.Errorf("opening storage: %w", err)
	}
	cleanup := func() {
		if err := db.Close(); err != nil {
			log.Printf("WARNING: closing database: %v", err)
		}
	}

	store, err := plan.NewStore(db)
	if err != nil {
		cleanup()
		return nil, noop, fmt.Errorf("creating plan store: %w", err)
	}
	sched := plan.NewScheduler(store)

	s := server.NewMCPServer(
		"stride",
		Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions()),
	)

	registerPlanTools(s, store, sched)

	// --- Memory subsystem ---
	//
	// Memory is independent from the plan engine: if its migration
	// fails, plan tools keep working. We log a warning and skip
	// memory tool registration.
	memStore, memErr := memory.NewStore(db, memory.Config{
		MaxContentLength: cfg.MaxNoteLength,
		MaxSearchResults: cfg.ListLimit,
	})
	if memErr != nil {
		log.Printf("WARNING: memory subsystem disabled: %v", memErr)
	} else {
		registerMemoryTools(s, memStore)
	}

	// --- Activity feed and resources ---
	//
	// The activity service tolerates missing memory tables, so it is
	// registered unconditionally.
	svc := activity.NewService(db)

	feedTool := plantools.NewActivityFeedTool(svc)
	s.AddTool(feedTool.Definition(), feedTool.Handle)

	resourceHandler := resources.NewHandler(svc)
	s.AddResource(resourceHandler.ActivityResource(), resourceHandler.HandleActivity)
	s.AddResource(resourceHandler.ProgressResource(), resourceHandler.HandleProgress)

	return s, cleanup, nil
}

// noop is the default cleanup when initialization fails early.
func noop() {}

// registerPlanTools registers every plan engine MCP tool.
func registerPlanTools(s *server.MCPServer, store *plan.Store, sched *plan.Scheduler) {
	// --- Plan CRUD ---
	createTool := plantools.NewCreateTool(store)
	s.AddTool(createTool.Definition(), createTool.Handle)

	getTool := plantools.NewGetTool(store)
	s.AddTool(getTool.Definition(), getTool.Handle)

	listTool := plantools.NewListTool(store)
	s.AddTool(listTool.Definition(), listTool.Handle)

	titlesTool := plantools.NewTitlesTool(store)
	s.AddTool(titlesTool.Definition(), titlesTool.Handle)

	updateBodyTool := plantools.NewUpdateBodyTool(store)
	s.AddTool(updateBodyTool.Definition(), updateBodyTool.Handle)

	deleteTool := plantools.NewDeleteTool(store)
	s.AddTool(deleteTool.Definition(), deleteTool.Handle)

	// --- Steps ---
	addStepTool := plantools.NewAddStepTool(store)
	s.AddTool(addStepTool.Definition(), addStepTool.Handle)

	listStepsTool := plantools.NewListStepsTool(store)
	s.AddTool(listStepsTool.Definition(), listStepsTool.Handle)

	updateStepTool := plantools.NewUpdateStepTool(sched)
	s.AddTool(updateStepTool.Definition(), updateStepTool.Handle)

	// --- Claim and release ---
	claimTool := plantools.NewClaimNextTool(sched)
	s.AddTool(claimTool.Definition(), claimTool.Handle)

	completeTool := plantools.NewCompleteStepTool(sched)
	s.AddTool(completeTool.Definition(), completeTool.Handle)

	failTool := plantools.NewFailStepTool(sched)
	s.AddTool(failTool.Definition(), failTool.Handle)

	// --- Lifecycle ---
	deferTool := plantools.NewDeferStepTool(sched)
	s.AddTool(deferTool.Definition(), deferTool.Handle)

	undeferTool := plantools.NewUndeferStepTool(sched)
	s.AddTool(undeferTool.Definition(), undeferTool.Handle)

	outdatedTool := plantools.NewMarkOutdatedTool(sched)
	s.AddTool(outdatedTool.Definition(), outdatedTool.Handle)

	pauseTool := plantools.NewPauseTool(sched)
	s.AddTool(pauseTool.Definition(), pauseTool.Handle)

	resumeTool := plantools.NewResumeTool(sched)
	s.AddTool(resumeTool.Definition(), resumeTool.Handle)
}

// registerMemoryTools registers the memory subsystem MCP tools.
func registerMemoryTools(s *server.MCPServer, ms *memory.Store) {
	saveNote := memtools.NewSaveNoteTool(ms)
	s.AddTool(saveNote.Definition(), saveNote.Handle)

	searchNotes := memtools.NewSearchNotesTool(ms)
	s.AddTool(searchNotes.Definition(), searchNotes.Handle)

	recordDecision := memtools.NewRecordDecisionTool(ms)
	s.AddTool(recordDecision.Definition(), recordDecision.Handle)

	listDecisions := memtools.NewListDecisionsTool(ms)
	s.AddTool(listDecisions.Definition(), listDecisions.Handle)

	saveContext := memtools.NewSaveContextTool(ms)
	s.AddTool(saveContext.Definition(), saveContext.Handle)

	getContext := memtools.NewGetContextTool(ms)
	s.AddTool(getContext.Definition(), getContext.Handle)

	listContexts := memtools.NewListContextsTool(ms)
	s.AddTool(listContexts.Definition(), listContexts.Handle)
}

// serverInstructions is shown to MCP hosts when they connect.
func serverInstructions() string {
	return `Stride is a plan coordination and memory backend for coding agents.

Plans are ordered, resumable step lists. Work a plan one step at a time:
1. plan_claim_next — atomically claim the next pending step. At most one
   step per plan is ever in progress, even across concurrent agents.
2. Do the work the step describes.
3. plan_complete_step or plan_fail_step — release the claim, recording
   the outcome.

A 'plan_locked' outcome means another agent holds the claim; back off or
work on a different plan. Replan with plan_add_step (fractional insertion),
plan_defer_step, and plan_mark_step_outdated.

Use memory_save_note / memory_record_decision to persist knowledge across
sessions, memory_save_context for session handoffs, and activity_feed to
catch up on recent work.`
}
