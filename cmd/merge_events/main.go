package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/joho/godotenv"

	"openwater-events-scraper/internal/models"
	"openwater-events-scraper/internal/services"
)

func main() {
	dryRun := flag.Bool("dry-run", false, "report duplicate groups without deleting anything")
	limit := flag.Int("limit", 0, "maximum number of groups to merge (0 = no limit)")
	autoYes := flag.Bool("yes", false, "accept every recommendation without prompting")
	fromDate := flag.String("from", "", "only consider events starting on or after this date (default: today)")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}

	ctx := context.Background()

	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		log.Fatalf("Failed to load AWS config: %v", err)
	}

	tableName := os.Getenv("EVENTS_TABLE")
	if tableName == "" {
		log.Fatal("EVENTS_TABLE environment variable is required")
	}
	store := services.NewStorageService(dynamodb.NewFromConfig(cfg), tableName)

	from := *fromDate
	if from == "" {
		from = models.FormatISODate(time.Now())
	} else if _, err := models.ParseISODate(from); err != nil {
		log.Fatalf("Invalid -from date: %v", err)
	}

	var confirm services.ConfirmFunc
	if !*autoYes && !*dryRun {
		confirm = promptOperator
	}

	merger := services.NewEventMerger(store, confirm, *dryRun)
	results, err := merger.Merge(ctx, from, *limit)
	if err != nil {
		log.Fatalf("Event merge failed: %v", err)
	}

	deleted := 0
	for _, result := range results {
		deleted += len(result.DeletedEventIDs)
	}
	log.Printf("Processed %d duplicate groups, removed %d events", len(results), deleted)
	if *dryRun {
		log.Print("Dry run: no events were modified")
	}
}

// promptOperator shows the group and asks which event to keep. Enter
// accepts the recommendation, a number picks another event, "s" skips.
func promptOperator(recommended models.Event, group []models.Event) string {
	fmt.Printf("\nDuplicate events at place %s on %s:\n", recommended.PlaceID, recommended.DateStart)
	for i, event := range group {
		marker := " "
		if event.ID == recommended.ID {
			marker = "*"
		}
		fmt.Printf("  %s [%d] %s (%s) %s\n", marker, i+1, event.Name, event.ID, event.Website)
	}
	fmt.Print("Keep which event? [Enter = recommended, number, s = skip]: ")

	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return ""
	}
	answer := strings.TrimSpace(line)

	switch {
	case answer == "":
		return recommended.ID
	case answer == "s" || answer == "S":
		return ""
	default:
		index, err := strconv.Atoi(answer)
		if err != nil || index < 1 || index > len(group) {
			fmt.Println("Unrecognized answer, skipping group")
			return ""
		}
		return group[index-1].ID
	}
}
