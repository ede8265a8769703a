//go:build integration

package main_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Kilat-Pet-Delivery/service-mileage/internal/application"
	"github.com/Kilat-Pet-Delivery/service-mileage/internal/domain/route"
	"github.com/Kilat-Pet-Delivery/service-mileage/internal/events"
	"github.com/Kilat-Pet-Delivery/service-mileage/internal/mapprovider"
	"github.com/Kilat-Pet-Delivery/service-mileage/internal/pkg/database"
	"github.com/Kilat-Pet-Delivery/service-mileage/internal/pkg/domain"
	"github.com/Kilat-Pet-Delivery/service-mileage/internal/pkg/kafka"
	"github.com/Kilat-Pet-Delivery/service-mileage/internal/repository"
	"github.com/Kilat-Pet-Delivery/service-mileage/internal/routing"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	kafkamodule "github.com/testcontainers/testcontainers-go/modules/kafka"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// testInfra holds shared test infrastructure.
type testInfra struct {
	DB           *gorm.DB
	KafkaBrokers []string
	Cleanup      func()
}

// mileageStack holds wired-up mileage service components backed by fake upstreams.
type mileageStack struct {
	Wizard          *application.WizardService
	Expenses        *application.ExpenseService
	Repo            *repository.GormExpenseRepository
	Routing         *fakeRouting
	CleanupProducer func()
}

// setupContainers starts PostgreSQL and Kafka testcontainers and returns a connected GORM DB.
func setupContainers(t *testing.T) *testInfra {
	t.Helper()
	ctx := context.Background()
	logger, _ := zap.NewDevelopment()

	pgReq := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "test_mileage",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: pgReq,
		Started:          true,
	})
	require.NoError(t, err, "failed to start PostgreSQL container")

	pgHost, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	pgPort, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("host=%s port=%s user=test password=test dbname=test_mileage sslmode=disable", pgHost, pgPort.Port())

	var db *gorm.DB
	require.Eventually(t, func() bool {
		var err error
		db, err = database.Connect(ctx, dsn, database.PoolConfig{}, logger)
		return err == nil
	}, 30*time.Second, 1*time.Second, "PostgreSQL not ready for connections")

	require.NoError(t, db.AutoMigrate(&repository.ExpenseModel{}))

	kafkaContainer, err := kafkamodule.Run(ctx, "confluentinc/confluent-local:7.5.0")
	require.NoError(t, err, "failed to start Kafka container")

	kafkaBrokers, err := kafkaContainer.Brokers(ctx)
	require.NoError(t, err, "failed to get Kafka brokers")

	createTopics(t, kafkaBrokers, events.TopicMileageEvents)

	cleanup := func() {
		if err := kafkaContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate Kafka container: %v", err)
		}
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate PostgreSQL container: %v", err)
		}
	}

	return &testInfra{
		DB:           db,
		KafkaBrokers: kafkaBrokers,
		Cleanup:      cleanup,
	}
}

// setupMileageStack wires the services against the real database and broker. The routing backend
// and the tile host are httptest servers; place lookups come from a fixed table.
func setupMileageStack(t *testing.T, db *gorm.DB, brokers []string) *mileageStack {
	t.Helper()
	logger, _ := zap.NewDevelopment()

	fr := newFakeRouting(t)
	tiles := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte{0x89, 'P', 'N', 'G'})
	}))
	t.Cleanup(tiles.Close)

	routingClient := routing.NewClient(routing.Config{BaseURL: fr.server.URL, Timeout: 5 * time.Second}, logger)
	resolver := application.NewMapTileResolver(
		nil,
		mapprovider.NewGoogleStatic(tiles.URL+"/google", "test-key"),
		mapprovider.NewGeoapifyStatic(tiles.URL+"/geoapify", "test-key"),
		mapprovider.NewHTTPImageLoader(5*time.Second),
		routingClient,
		application.MapTileConfig{},
		logger,
	)

	repo := repository.NewGormExpenseRepository(db)
	producer := kafka.NewProducer(brokers, logger)
	calculator := application.NewRouteCalculator(routingClient, logger)
	wizardSvc := application.NewWizardService(calculator, resolver, fixedPlaces{}, repo, producer,
		application.WizardConfig{SessionTTL: time.Hour, AutocompleteDebounce: 10 * time.Millisecond}, logger)

	return &mileageStack{
		Wizard:          wizardSvc,
		Expenses:        application.NewExpenseService(repo, resolver, logger),
		Repo:            repo,
		Routing:         fr,
		CleanupProducer: func() { _ = producer.Close() },
	}
}

// fakeRouting answers the routing backend endpoints. distanceMeters is what /distance reports.
type fakeRouting struct {
	server         *httptest.Server
	distanceMeters atomic.Int64
}

func newFakeRouting(t *testing.T) *fakeRouting {
	t.Helper()
	fr := &fakeRouting{}
	fr.distanceMeters.Store(390000)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /distance", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, routing.DistanceResponse{
			DistanceValue: float64(fr.distanceMeters.Load()),
			DurationValue: 14400,
			DistanceUnit:  "m",
		})
	})
	mux.HandleFunc("POST /route/optimize", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, routing.RouteResponse{
			DistanceResponse: routing.DistanceResponse{DistanceValue: float64(fr.distanceMeters.Load()), DurationValue: 14400, DistanceUnit: "m"},
		})
	})
	fr.server = httptest.NewServer(mux)
	t.Cleanup(fr.server.Close)
	return fr
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// fixedPlaces resolves a small table of known place IDs.
type fixedPlaces struct{}

var knownPlaces = map[string]route.Place{
	"kl-sentral": {PlaceID: "kl-sentral", Description: "KL Sentral", Location: &route.LatLng{Lat: 3.1343, Lng: 101.6865}},
	"penang":     {PlaceID: "penang", Description: "George Town, Penang", Location: &route.LatLng{Lat: 5.4141, Lng: 100.3288}},
	"ipoh":       {PlaceID: "ipoh", Description: "Ipoh", Location: &route.LatLng{Lat: 4.5975, Lng: 101.0901}},
}

func (fixedPlaces) Autocomplete(_ context.Context, query, _ string) ([]route.Place, error) {
	var out []route.Place
	for _, p := range knownPlaces {
		if query != "" && strings.HasPrefix(p.Description, query) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (fixedPlaces) Details(_ context.Context, placeID string) (*route.Place, error) {
	p, ok := knownPlaces[placeID]
	if !ok {
		return nil, domain.NewNotFoundError("place", placeID)
	}
	return &p, nil
}

// driveWizardToSubmit walks a new session from start to a submitted expense.
func driveWizardToSubmit(t *testing.T, svc *application.WizardService, costPerKm float64) *application.ExpenseDTO {
	t.Helper()
	ctx := context.Background()
	id := svc.CreateSession(ctx).ID

	steps := []func() (*application.SessionDTO, error){
		func() (*application.SessionDTO, error) { return svc.SetStartLocation(ctx, id, "kl-sentral") },
		func() (*application.SessionDTO, error) { return svc.Next(ctx, id) },
		func() (*application.SessionDTO, error) { return svc.Next(ctx, id) },
		func() (*application.SessionDTO, error) { return svc.SetEndLocation(ctx, id, "penang") },
		func() (*application.SessionDTO, error) { return svc.Next(ctx, id) },
		func() (*application.SessionDTO, error) { return svc.Next(ctx, id) },
		func() (*application.SessionDTO, error) {
			return svc.Calculate(ctx, id, application.CalculateRequest{})
		},
		func() (*application.SessionDTO, error) { return svc.Next(ctx, id) },
		func() (*application.SessionDTO, error) {
			date := "2026-10-01"
			return svc.UpdateDetails(ctx, id, application.UpdateDetailsRequest{CostPerKm: costPerKm, Description: "integration trip", TripDate: &date})
		},
	}
	for i, step := range steps {
		_, err := step()
		require.NoError(t, err, "wizard step %d failed", i)
	}

	exp, err := svc.Submit(ctx, id)
	require.NoError(t, err, "submit failed")
	return exp
}

// consumeOneEvent reads from a Kafka topic until it finds an event of the expected type whose
// data satisfies match.
func consumeOneEvent(t *testing.T, brokers []string, topic, expectedType string, match func(kafka.CloudEvent) bool, timeout time.Duration) kafka.CloudEvent {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	groupID := fmt.Sprintf("test-assert-%s", uuid.New().String()[:8])
	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     brokers,
		GroupID:     groupID,
		Topic:       topic,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafkago.FirstOffset,
	})
	defer func() { _ = reader.Close() }()

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				t.Fatalf("timed out waiting for event type %q on topic %q", expectedType, topic)
			}
			continue
		}
		ce, err := kafka.ParseCloudEvent(msg.Value)
		if err != nil {
			continue
		}
		if ce.Type == expectedType && match(ce) {
			return ce
		}
	}
}

// createTopics pre-creates Kafka topics so producers don't fail with "Unknown Topic".
func createTopics(t *testing.T, brokers []string, topics ...string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", brokers[0])
	require.NoError(t, err, "failed to dial Kafka for topic creation")
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err, "failed to get Kafka controller")

	controllerConn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, fmt.Sprintf("%d", controller.Port)))
	require.NoError(t, err, "failed to connect to Kafka controller")
	defer controllerConn.Close()

	topicConfigs := make([]kafkago.TopicConfig, len(topics))
	for i, topic := range topics {
		topicConfigs[i] = kafkago.TopicConfig{
			Topic:             topic,
			NumPartitions:     1,
			ReplicationFactor: 1,
		}
	}
	err = controllerConn.CreateTopics(topicConfigs...)
	require.NoError(t, err, "failed to create Kafka topics")

	time.Sleep(1 * time.Second)
}
