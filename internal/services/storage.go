package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"openwater-events-scraper/internal/models"
)

// StorageService provides CRUD over places, organizers, events and races
// on a single DynamoDB table. Entity items carry synthetic GSI keys
// (type-date-index, organizer-date-index, place-date-index); event
// uniqueness on (place, start date) is enforced by a guard item written
// in the same transaction as the event.
type StorageService struct {
	client    *dynamodb.Client
	tableName string
}

// NewStorageService creates a new storage service instance.
func NewStorageService(client *dynamodb.Client, tableName string) *StorageService {
	return &StorageService{client: client, tableName: tableName}
}

// Place operations

// CreatePlace stores a new place.
func (s *StorageService) CreatePlace(ctx context.Context, place *models.Place) error {
	now := time.Now()
	place.CreatedAt = now
	place.UpdatedAt = now
	models.PopulatePlaceKeys(place)

	item, err := attributevalue.MarshalMap(place)
	if err != nil {
		return fmt.Errorf("failed to marshal place: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("%w: failed to create place: %v", ErrPersistence, err)
	}
	return nil
}

// GetPlace retrieves a place by ID.
func (s *StorageService) GetPlace(ctx context.Context, placeID string) (*models.Place, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: models.CreatePlacePK(placeID)},
			"SK": &types.AttributeValueMemberS{Value: models.SKMetadata},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get place: %w", err)
	}
	if result.Item == nil {
		return nil, fmt.Errorf("place %s not found", placeID)
	}

	var place models.Place
	if err := attributevalue.UnmarshalMap(result.Item, &place); err != nil {
		return nil, fmt.Errorf("failed to unmarshal place: %w", err)
	}
	return &place, nil
}

// UpdatePlace upserts a place, refreshing its timestamps and keys.
func (s *StorageService) UpdatePlace(ctx context.Context, place *models.Place) error {
	place.UpdatedAt = time.Now()
	models.PopulatePlaceKeys(place)

	item, err := attributevalue.MarshalMap(place)
	if err != nil {
		return fmt.Errorf("failed to marshal place: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("%w: failed to update place: %v", ErrPersistence, err)
	}
	return nil
}

// DeletePlace removes a place. Only merge tooling calls this, after
// re-pointing the dependent events.
func (s *StorageService) DeletePlace(ctx context.Context, placeID string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: models.CreatePlacePK(placeID)},
			"SK": &types.AttributeValueMemberS{Value: models.SKMetadata},
		},
	})
	if err != nil {
		return fmt.Errorf("%w: failed to delete place: %v", ErrPersistence, err)
	}
	return nil
}

// ListPlaces returns all places.
func (s *StorageService) ListPlaces(ctx context.Context) ([]models.Place, error) {
	var places []models.Place
	err := s.queryByTypeKey(ctx, models.TypeKeyPlace, "", &places)
	if err != nil {
		return nil, fmt.Errorf("failed to list places: %w", err)
	}
	return places, nil
}

// ListGeocodedPlaces returns all places with non-null coordinates.
func (s *StorageService) ListGeocodedPlaces(ctx context.Context) ([]models.Place, error) {
	places, err := s.ListPlaces(ctx)
	if err != nil {
		return nil, err
	}

	geocoded := places[:0]
	for _, place := range places {
		if place.HasCoordinates() {
			geocoded = append(geocoded, place)
		}
	}
	return geocoded, nil
}

// Organizer operations

// CreateOrganizer stores a new organizer.
func (s *StorageService) CreateOrganizer(ctx context.Context, organizer *models.Organizer) error {
	now := time.Now()
	organizer.CreatedAt = now
	organizer.UpdatedAt = now
	if organizer.ContactStatus == "" {
		organizer.ContactStatus = models.ContactStatusPending
	}
	models.PopulateOrganizerKeys(organizer)

	item, err := attributevalue.MarshalMap(organizer)
	if err != nil {
		return fmt.Errorf("failed to marshal organizer: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("%w: failed to create organizer: %v", ErrPersistence, err)
	}
	return nil
}

// ListOrganizers returns all organizers, in stable (name) order.
func (s *StorageService) ListOrganizers(ctx context.Context) ([]models.Organizer, error) {
	var organizers []models.Organizer
	err := s.queryByTypeKey(ctx, models.TypeKeyOrganizer, "", &organizers)
	if err != nil {
		return nil, fmt.Errorf("failed to list organizers: %w", err)
	}
	return organizers, nil
}

// Event operations

// EventExistsAt reports whether an event is already committed for the
// (place, start date) pair by checking its uniqueness guard item.
func (s *StorageService) EventExistsAt(ctx context.Context, placeID, dateStart string) (bool, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: models.CreateEventGuardPK(placeID, dateStart)},
			"SK": &types.AttributeValueMemberS{Value: "UNIQUE"},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return false, fmt.Errorf("failed to check event guard: %w", err)
	}
	return result.Item != nil, nil
}

// CommitEvent persists an event, its uniqueness guard and all its races
// in one transaction: either everything is written or nothing is. A
// competing commit for the same (place, start date) trips the guard
// condition and surfaces as ErrDuplicate; any other cancellation is
// ErrPersistence.
func (s *StorageService) CommitEvent(ctx context.Context, event *models.Event, races []models.Race) error {
	now := time.Now()
	event.CreatedAt = now
	event.UpdatedAt = now
	models.PopulateEventKeys(event)

	eventItem, err := attributevalue.MarshalMap(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	transactItems := []types.TransactWriteItem{
		{
			Put: &types.Put{
				TableName:           aws.String(s.tableName),
				ConditionExpression: aws.String("attribute_not_exists(PK)"),
				Item: map[string]types.AttributeValue{
					"PK":       &types.AttributeValueMemberS{Value: models.CreateEventGuardPK(event.PlaceID, event.DateStart)},
					"SK":       &types.AttributeValueMemberS{Value: "UNIQUE"},
					"event_id": &types.AttributeValueMemberS{Value: event.ID},
				},
			},
		},
		{
			Put: &types.Put{
				TableName: aws.String(s.tableName),
				Item:      eventItem,
			},
		},
	}

	for i := range races {
		races[i].EventID = event.ID
		models.PopulateRaceKeys(&races[i])
		raceItem, err := attributevalue.MarshalMap(races[i])
		if err != nil {
			return fmt.Errorf("failed to marshal race: %w", err)
		}
		transactItems = append(transactItems, types.TransactWriteItem{
			Put: &types.Put{
				TableName: aws.String(s.tableName),
				Item:      raceItem,
			},
		})
	}

	_, err = s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: transactItems,
	})
	if err != nil {
		var canceled *types.TransactionCanceledException
		if errors.As(err, &canceled) {
			for _, reason := range canceled.CancellationReasons {
				if reason.Code != nil && *reason.Code == "ConditionalCheckFailed" {
					return fmt.Errorf("%w: event already exists at place %s on %s",
						ErrDuplicate, event.PlaceID, event.DateStart)
				}
			}
		}
		return fmt.Errorf("%w: event commit transaction failed: %v", ErrPersistence, err)
	}
	return nil
}

// GetEvent retrieves an event by ID.
func (s *StorageService) GetEvent(ctx context.Context, eventID string) (*models.Event, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: models.CreateEventPK(eventID)},
			"SK": &types.AttributeValueMemberS{Value: models.SKMetadata},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	if result.Item == nil {
		return nil, fmt.Errorf("event %s not found", eventID)
	}

	var event models.Event
	if err := attributevalue.UnmarshalMap(result.Item, &event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}
	return &event, nil
}

// ListEventSourceURLs returns the source website URLs of every committed
// event, as the read-only snapshot the discovery filter works against.
func (s *StorageService) ListEventSourceURLs(ctx context.Context) ([]string, error) {
	var events []models.Event
	if err := s.queryByTypeKey(ctx, models.TypeKeyEvent, "", &events); err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	var urls []string
	for _, event := range events {
		if event.Website != "" {
			urls = append(urls, event.Website)
		}
	}
	return urls, nil
}

// ListFutureEvents returns all events with a start date on or after the
// given ISO date.
func (s *StorageService) ListFutureEvents(ctx context.Context, fromDate string) ([]models.Event, error) {
	var events []models.Event
	if err := s.queryByTypeKey(ctx, models.TypeKeyEvent, fromDate, &events); err != nil {
		return nil, fmt.Errorf("failed to list future events: %w", err)
	}
	return events, nil
}

// ListEventsForOrganizer returns an organizer's events with a start date
// on or after the given ISO date.
func (s *StorageService) ListEventsForOrganizer(ctx context.Context, organizerID, fromDate string) ([]models.Event, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		IndexName:              aws.String("organizer-date-index"),
		KeyConditionExpression: aws.String("OrganizerKey = :organizerKey AND DateKey >= :fromDate"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":organizerKey": &types.AttributeValueMemberS{Value: models.GenerateOrganizerKey(organizerID)},
			":fromDate":     &types.AttributeValueMemberS{Value: fromDate},
		},
	}

	var events []models.Event
	paginator := dynamodb.NewQueryPaginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to query organizer events: %w", err)
		}
		var pageEvents []models.Event
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &pageEvents); err != nil {
			return nil, fmt.Errorf("failed to unmarshal events: %w", err)
		}
		events = append(events, pageEvents...)
	}
	return events, nil
}

// ListEventsAtPlace returns every event held at the given place.
func (s *StorageService) ListEventsAtPlace(ctx context.Context, placeID string) ([]models.Event, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		IndexName:              aws.String("place-date-index"),
		KeyConditionExpression: aws.String("PlaceKey = :placeKey"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":placeKey": &types.AttributeValueMemberS{Value: models.GeneratePlaceKey(placeID)},
		},
	}

	var events []models.Event
	paginator := dynamodb.NewQueryPaginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to query place events: %w", err)
		}
		var pageEvents []models.Event
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &pageEvents); err != nil {
			return nil, fmt.Errorf("failed to unmarshal events: %w", err)
		}
		events = append(events, pageEvents...)
	}
	return events, nil
}

// RepointEvent moves an event to a different place, rewriting its
// place-date key and uniqueness guard. Guards are touched only while
// they point at this event: when another event already holds the guard
// at the target place the move still happens with the guards left
// alone, and the duplicate is resolved by the event merge tool.
func (s *StorageService) RepointEvent(ctx context.Context, event *models.Event, newPlaceID string) error {
	oldGuardPK := models.CreateEventGuardPK(event.PlaceID, event.DateStart)
	event.PlaceID = newPlaceID
	event.UpdatedAt = time.Now()
	models.PopulateEventKeys(event)

	eventItem, err := attributevalue.MarshalMap(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	ownGuard := aws.String("attribute_not_exists(PK) OR event_id = :id")
	eventID := map[string]types.AttributeValue{
		":id": &types.AttributeValueMemberS{Value: event.ID},
	}
	_, err = s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Delete: &types.Delete{
					TableName: aws.String(s.tableName),
					Key: map[string]types.AttributeValue{
						"PK": &types.AttributeValueMemberS{Value: oldGuardPK},
						"SK": &types.AttributeValueMemberS{Value: "UNIQUE"},
					},
					ConditionExpression:       ownGuard,
					ExpressionAttributeValues: eventID,
				},
			},
			{
				Put: &types.Put{
					TableName: aws.String(s.tableName),
					Item: map[string]types.AttributeValue{
						"PK":       &types.AttributeValueMemberS{Value: models.CreateEventGuardPK(newPlaceID, event.DateStart)},
						"SK":       &types.AttributeValueMemberS{Value: "UNIQUE"},
						"event_id": &types.AttributeValueMemberS{Value: event.ID},
					},
					ConditionExpression:       ownGuard,
					ExpressionAttributeValues: eventID,
				},
			},
			{
				Put: &types.Put{
					TableName: aws.String(s.tableName),
					Item:      eventItem,
				},
			},
		},
	})
	if err == nil {
		return nil
	}

	var canceled *types.TransactionCanceledException
	if errors.As(err, &canceled) {
		for _, reason := range canceled.CancellationReasons {
			if reason.Code != nil && *reason.Code == "ConditionalCheckFailed" {
				// a guard points at another event; move the event without
				// rewriting guards. A stale guard left at the loser place
				// is harmless because the place merge deletes that place.
				_, retryErr := s.client.PutItem(ctx, &dynamodb.PutItemInput{
					TableName: aws.String(s.tableName),
					Item:      eventItem,
				})
				if retryErr == nil {
					return nil
				}
				err = retryErr
				break
			}
		}
	}
	return fmt.Errorf("%w: failed to repoint event %s: %v", ErrPersistence, event.ID, err)
}

// LinkPreviousEdition records the prior-year event of the same series.
func (s *StorageService) LinkPreviousEdition(ctx context.Context, eventID, previousID string) error {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: models.CreateEventPK(eventID)},
			"SK": &types.AttributeValueMemberS{Value: models.SKMetadata},
		},
		UpdateExpression: aws.String("SET previous_edition_id = :prev, updated_at = :now"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":prev": &types.AttributeValueMemberS{Value: previousID},
			":now":  &types.AttributeValueMemberS{Value: time.Now().Format(time.RFC3339Nano)},
		},
	})
	if err != nil {
		return fmt.Errorf("%w: failed to link previous edition: %v", ErrPersistence, err)
	}
	return nil
}

// Race operations

// ListRaces returns all races of an event.
func (s *StorageService) ListRaces(ctx context.Context, eventID string) ([]models.Race, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :racePrefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":         &types.AttributeValueMemberS{Value: models.CreateEventPK(eventID)},
			":racePrefix": &types.AttributeValueMemberS{Value: "RACE#"},
		},
	}

	var races []models.Race
	paginator := dynamodb.NewQueryPaginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to query races: %w", err)
		}
		var pageRaces []models.Race
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &pageRaces); err != nil {
			return nil, fmt.Errorf("failed to unmarshal races: %w", err)
		}
		races = append(races, pageRaces...)
	}
	return races, nil
}

// DeleteEventWithRaces removes an event and all its races. The
// (place, start date) uniqueness guard is shared by every duplicate at
// that place and date, so it is only deleted while it still points at
// this event. Used by the event merge tool for the non-kept duplicates.
func (s *StorageService) DeleteEventWithRaces(ctx context.Context, event *models.Event) error {
	races, err := s.ListRaces(ctx, event.ID)
	if err != nil {
		return err
	}

	keys := []map[string]types.AttributeValue{
		{
			"PK": &types.AttributeValueMemberS{Value: models.CreateEventPK(event.ID)},
			"SK": &types.AttributeValueMemberS{Value: models.SKMetadata},
		},
	}
	for _, race := range races {
		keys = append(keys, map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: race.PK},
			"SK": &types.AttributeValueMemberS{Value: race.SK},
		})
	}

	for _, key := range keys {
		_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName: aws.String(s.tableName),
			Key:       key,
		})
		if err != nil {
			return fmt.Errorf("%w: failed to delete event %s items: %v", ErrPersistence, event.ID, err)
		}
	}

	_, err = s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: models.CreateEventGuardPK(event.PlaceID, event.DateStart)},
			"SK": &types.AttributeValueMemberS{Value: "UNIQUE"},
		},
		ConditionExpression: aws.String("event_id = :id"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":id": &types.AttributeValueMemberS{Value: event.ID},
		},
	})
	if err != nil {
		var condFailed *types.ConditionalCheckFailedException
		if errors.As(err, &condFailed) {
			// the guard belongs to another event at this place and date
			return nil
		}
		return fmt.Errorf("%w: failed to delete event %s guard: %v", ErrPersistence, event.ID, err)
	}
	return nil
}

// EnsureEventGuard rewrites the (place, start date) uniqueness guard so
// it points at the given event. The event merge tool calls it for the
// kept event after deleting its duplicates.
func (s *StorageService) EnsureEventGuard(ctx context.Context, event *models.Event) error {
	_, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item: map[string]types.AttributeValue{
			"PK":       &types.AttributeValueMemberS{Value: models.CreateEventGuardPK(event.PlaceID, event.DateStart)},
			"SK":       &types.AttributeValueMemberS{Value: "UNIQUE"},
			"event_id": &types.AttributeValueMemberS{Value: event.ID},
		},
	})
	if err != nil {
		return fmt.Errorf("%w: failed to write event guard for %s: %v", ErrPersistence, event.ID, err)
	}
	return nil
}

// Crawl task operations

// CreateCrawlTask stores a queued task record with a 90-day TTL.
func (s *StorageService) CreateCrawlTask(ctx context.Context, task *models.CrawlTask) error {
	now := time.Now()
	task.CreatedAt = now
	task.UpdatedAt = now
	task.PK = models.CreateTaskPK(task.TaskID)
	task.SK = models.SKMetadata
	task.TTL = models.CalculateTTL(90 * 24 * time.Hour)

	item, err := attributevalue.MarshalMap(task)
	if err != nil {
		return fmt.Errorf("failed to marshal crawl task: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("%w: failed to create crawl task: %v", ErrPersistence, err)
	}
	return nil
}

// UpdateCrawlTask upserts a task record, refreshing its timestamp.
func (s *StorageService) UpdateCrawlTask(ctx context.Context, task *models.CrawlTask) error {
	task.UpdatedAt = time.Now()
	if task.PK == "" {
		task.PK = models.CreateTaskPK(task.TaskID)
		task.SK = models.SKMetadata
	}

	item, err := attributevalue.MarshalMap(task)
	if err != nil {
		return fmt.Errorf("failed to marshal crawl task: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("%w: failed to update crawl task: %v", ErrPersistence, err)
	}
	return nil
}

// queryByTypeKey queries the type-date-index for one entity type,
// optionally constraining the date sort key, unmarshaling every page
// into out (a pointer to a slice).
func (s *StorageService) queryByTypeKey(ctx context.Context, typeKey, fromDate string, out interface{}) error {
	keyCondition := "TypeKey = :typeKey"
	values := map[string]types.AttributeValue{
		":typeKey": &types.AttributeValueMemberS{Value: typeKey},
	}
	if fromDate != "" {
		keyCondition += " AND DateKey >= :fromDate"
		values[":fromDate"] = &types.AttributeValueMemberS{Value: fromDate}
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(s.tableName),
		IndexName:                 aws.String("type-date-index"),
		KeyConditionExpression:    aws.String(keyCondition),
		ExpressionAttributeValues: values,
	}

	var items []map[string]types.AttributeValue
	paginator := dynamodb.NewQueryPaginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return err
		}
		items = append(items, page.Items...)
	}

	return attributevalue.UnmarshalListOfMaps(items, out)
}
