// seed creates the system agent and a handful of demo tasks in the local
// dev database.
// Run: go run ./cmd/seed
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/ordinaut/ordinaut/internal/authz"
	"github.com/ordinaut/ordinaut/internal/domain"
	"github.com/ordinaut/ordinaut/internal/lifecycle"
	"github.com/ordinaut/ordinaut/internal/scheduler"
	"github.com/ordinaut/ordinaut/internal/store"
	"github.com/ordinaut/ordinaut/internal/store/postgres"
)

type taskSpec struct {
	title        string
	scheduleKind domain.ScheduleKind
	scheduleExpr string
	payload      string
}

var demoTasks = []taskSpec{
	{"minutely heartbeat ping", domain.ScheduleCron, "* * * * *",
		`{"method":"GET","url":"https://httpbin.org/get","timeout_seconds":10}`},
	{"hourly report webhook", domain.ScheduleCron, "0 * * * *",
		`{"method":"POST","url":"https://httpbin.org/post","timeout_seconds":30}`},
	{"weekday standup reminder", domain.ScheduleRRule, "FREQ=WEEKLY;BYDAY=MO,TU,WE,TH,FR;BYHOUR=9;BYMINUTE=0",
		`{"method":"POST","url":"https://httpbin.org/post","timeout_seconds":15}`},
	{"one-off migration kickoff", domain.ScheduleOnce, time.Now().Add(5 * time.Minute).Format(time.RFC3339),
		`{"method":"POST","url":"https://httpbin.org/post","timeout_seconds":60}`},
}

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	pool, err := postgres.NewPool(ctx, dbURL)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer pool.Close()

	st := postgres.NewStore(pool)

	agent, err := st.GetAgentByName(ctx, domain.SystemAgentName)
	if err != nil {
		agent, err = st.CreateAgent(ctx, &domain.Agent{
			ID:   uuid.NewString(),
			Name: domain.SystemAgentName,
			Scopes: []string{
				authz.ScopeAdmin,
			},
		})
		if err != nil {
			log.Fatalf("create system agent: %v", err)
		}
	}

	actor := authz.Actor{AgentID: agent.ID, Scopes: agent.Scopes}
	sched := scheduler.New(st, st, logger, time.Minute)
	svc := lifecycle.New(st, sched)

	existing, err := st.ListTasks(ctx, store.ListTasksInput{CreatedBy: agent.ID, Limit: 100})
	if err != nil {
		log.Fatalf("list tasks: %v", err)
	}
	existingTitles := make(map[string]bool, len(existing))
	for _, t := range existing {
		existingTitles[t.Title] = true
	}

	var created, skipped int
	for _, spec := range demoTasks {
		if existingTitles[spec.title] {
			skipped++
			continue
		}

		_, err = svc.CreateTask(ctx, actor, lifecycle.CreateTaskInput{
			Title:        spec.title,
			ScheduleKind: spec.scheduleKind,
			ScheduleExpr: spec.scheduleExpr,
			Timezone:     "UTC",
			Payload:      []byte(spec.payload),
			Priority:     5,
			Retry:        domain.RetryPolicy{MaxRetries: 3, Backoff: domain.BackoffExponentialJitter},
		})
		if err != nil {
			log.Fatalf("create task %q: %v", spec.title, err)
		}
		created++
	}

	fmt.Println("Seed complete")
	fmt.Println()
	fmt.Printf("  System agent: %s\n", agent.ID)
	fmt.Printf("  Tasks created: %d  (skipped %d already existing)\n", created, skipped)
	fmt.Println()
	fmt.Println("How to test:")
	fmt.Println()
	fmt.Println("  Step 1 — mint a JWT for the system agent (sub=agent id, scopes=[\"admin\"])")
	fmt.Println("           signed with JWT_SECRET.")
	fmt.Println()
	fmt.Println("  Step 2 — list tasks:")
	fmt.Println()
	fmt.Println("    export JWT=eyJ...")
	fmt.Println("    curl -s http://localhost:8080/v1/tasks -H \"Authorization: Bearer $JWT\"")
}
