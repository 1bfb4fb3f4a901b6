package main

import (
	"flag"
	"log"

	"github.com/liveboard/api/internal/config"
	"github.com/liveboard/api/internal/database"
	"github.com/liveboard/api/internal/model"
	"github.com/liveboard/api/internal/store"
)

// Seeds a demo session with a handful of strokes so a fresh deployment
// has something to render.
func main() {
	teacherName := flag.String("teacher", "Demo Teacher", "Teacher name for the seeded session")
	students := flag.Int("students", 2, "Number of demo students to register")
	strokesPer := flag.Int("strokes", 3, "Strokes to append per participant")
	flag.Parse()

	cfg := config.Load()

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	sessions := store.NewSessionStore(db, cfg.CodeAttempts)
	presence := store.NewPresenceStore(db, cfg.StalenessWindow)
	strokes := store.NewStrokeStore(db)

	session, err := sessions.Create(*teacherName)
	if err != nil {
		log.Fatalf("Failed to create session: %v", err)
	}
	log.Printf("Created session %s with join code %s", session.ID, session.Code)

	names := []string{"Avery", "Blake", "Casey", "Drew", "Emery", "Finley"}
	registered := []struct{ role, name string }{{model.RoleTeacher, *teacherName}}
	for i := 0; i < *students && i < len(names); i++ {
		if err := presence.Heartbeat(session.ID, names[i], model.RoleStudent); err != nil {
			log.Fatalf("Failed to register student %s: %v", names[i], err)
		}
		registered = append(registered, struct{ role, name string }{model.RoleStudent, names[i]})
		log.Printf("Registered student %s", names[i])
	}

	colors := []string{"#2563eb", "#dc2626", "#16a34a", "#9333ea"}
	total := 0
	for _, author := range registered {
		for i := 0; i < *strokesPer; i++ {
			payload := model.StrokePayload{
				Tool:  model.ToolPen,
				Color: colors[total%len(colors)],
				Size:  4,
				Points: []model.Point{
					{X: float64(20 + total*30), Y: float64(40 + i*25)},
					{X: float64(50 + total*30), Y: float64(60 + i*25)},
					{X: float64(80 + total*30), Y: float64(45 + i*25)},
				},
			}
			result, err := strokes.Append(session.ID, author.role, author.name, payload, "")
			if err != nil {
				log.Fatalf("Failed to append stroke for %s: %v", author.name, err)
			}
			total++
			log.Printf("Appended stroke %d (sequence %d) for %s", total, result.Sequence, author.name)
		}
	}

	log.Printf("Seeded %d strokes into session %s", total, session.Code)
}
