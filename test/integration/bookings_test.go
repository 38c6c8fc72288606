package integration_test

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	redisclient "github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	mongoadapter "github.com/wanderly/tour-bookings/internal/adapters/mongo"
	"github.com/wanderly/tour-bookings/internal/adapters/rabbit"
	redisadapter "github.com/wanderly/tour-bookings/internal/adapters/redis"
	"github.com/wanderly/tour-bookings/internal/auth"
	"github.com/wanderly/tour-bookings/internal/booking"
	"github.com/wanderly/tour-bookings/internal/config"
	"github.com/wanderly/tour-bookings/internal/domain"
	httphandler "github.com/wanderly/tour-bookings/internal/http"
	"github.com/wanderly/tour-bookings/internal/observability"
	"github.com/wanderly/tour-bookings/internal/payments"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const signingSecret = "whsec_integration_secret"

func TestIntegration_SignupCheckoutWebhook(t *testing.T) {
	ctx := context.Background()

	mongoContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "mongo:7",
			ExposedPorts: []string{"27017/tcp"},
			WaitingFor:   wait.ForExec([]string{"mongosh", "--eval", "db.runCommand('ping').ok"}),
		},
		Started: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer mongoContainer.Terminate(ctx)

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForExec([]string{"redis-cli", "ping"}),
		},
		Started: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer redisContainer.Terminate(ctx)

	rabbitContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "rabbitmq:3.13-management",
			ExposedPorts: []string{"5672/tcp", "15672/tcp"},
			WaitingFor:   wait.ForHTTP("/api/health").WithPort("15672"),
		},
		Started: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer rabbitContainer.Terminate(ctx)

	mongoHost, err := mongoContainer.Host(ctx)
	if err != nil {
		t.Fatal(err)
	}
	mongoPort, err := mongoContainer.MappedPort(ctx, "27017")
	if err != nil {
		t.Fatal(err)
	}
	redisHost, err := redisContainer.Host(ctx)
	if err != nil {
		t.Fatal(err)
	}
	redisPort, err := redisContainer.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatal(err)
	}
	rabbitHost, err := rabbitContainer.Host(ctx)
	if err != nil {
		t.Fatal(err)
	}
	rabbitPort, err := rabbitContainer.MappedPort(ctx, "5672")
	if err != nil {
		t.Fatal(err)
	}

	cfg := &config.Config{
		Env:                 "test",
		MongoURI:            "mongodb://" + mongoHost + ":" + mongoPort.Port(),
		RedisAddr:           redisHost + ":" + redisPort.Port(),
		RabbitURL:           "amqp://guest:guest@" + rabbitHost + ":" + rabbitPort.Port() + "/",
		StripeSecretKey:     "sk_test_key",
		StripeWebhookSecret: signingSecret,
		JWTSecret:           "integration-secret",
		JWTExpiresIn:        time.Hour,
		JWTCookieExpiresIn:  time.Hour,
		BaseURL:             "http://localhost:8080",
	}

	logger := observability.NewLogger()

	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		t.Fatal(err)
	}
	defer mongoClient.Disconnect(ctx)
	db := mongoClient.Database("tours_integration")

	rabbitConn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		t.Fatal(err)
	}
	defer rabbitConn.Close()
	rabbitPub, err := rabbit.NewPublisher(rabbitConn)
	if err != nil {
		t.Fatal(err)
	}

	tours := mongoadapter.NewTourRepository(db, logger)
	users := mongoadapter.NewUserRepository(db, logger)
	reviews := mongoadapter.NewReviewRepository(db, rabbitPub, logger)
	bookings := mongoadapter.NewBookingRepository(db, logger)
	for _, ensure := range []func(context.Context) error{tours.EnsureIndexes, users.EnsureIndexes, reviews.EnsureIndexes} {
		if err := ensure(ctx); err != nil {
			t.Fatal(err)
		}
	}

	redisClient := redisclient.NewClient(&redisclient.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()
	tourCache := redisadapter.NewTourCache(redisClient, time.Minute)

	tokens := auth.NewTokenService(cfg.JWTSecret, cfg.JWTExpiresIn)
	paymentClient := payments.NewClient(cfg.StripeSecretKey, cfg.StripeWebhookSecret, logger)
	reconciler := booking.NewReconciler(users, bookings, logger)
	handlers := httphandler.NewHandlers(cfg, logger, tokens, users, tours, reviews, bookings, tourCache, paymentClient, reconciler)

	srv := httptest.NewServer(httphandler.SetupRouter(handlers, logger))
	defer srv.Close()

	tour := domain.Tour{
		Name:         "The Forest Hiker",
		Duration:     5,
		MaxGroupSize: 25,
		Difficulty:   domain.DifficultyEasy,
		Price:        397,
		Summary:      "Breathtaking hike through the Canadian Banff National Park",
		ImageCover:   "tour-1-cover.jpg",
	}
	if err := tours.Create(ctx, &tour); err != nil {
		t.Fatal(err)
	}

	signupBody, _ := json.Marshal(map[string]string{
		"name":            "Lena",
		"email":           "lena@example.com",
		"password":        "pass1234word",
		"passwordConfirm": "pass1234word",
	})
	resp, err := http.Post(srv.URL+"/api/v1/users/signup", "application/json", bytes.NewReader(signupBody))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("signup: expected 201, got %d", resp.StatusCode)
	}
	var signup struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&signup); err != nil {
		t.Fatal(err)
	}
	if signup.Token == "" {
		t.Fatal("expected a session token from signup")
	}

	payload, _ := json.Marshal(map[string]interface{}{
		"id":   "evt_integration_1",
		"type": "checkout.session.completed",
		"data": map[string]interface{}{
			"object": map[string]interface{}{
				"id":                  "cs_integration_1",
				"client_reference_id": tour.ID.Hex(),
				"customer_email":      "lena@example.com",
				"amount_total":        39700,
			},
		},
	})
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/webhook-checkout", bytes.NewReader(payload))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Stripe-Signature", signWebhookPayload(payload, signingSecret))
	webhookResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer webhookResp.Body.Close()
	if webhookResp.StatusCode != http.StatusOK {
		t.Fatalf("webhook: expected 200, got %d", webhookResp.StatusCode)
	}

	listReq, err := http.NewRequest(http.MethodGet, srv.URL+"/api/v1/bookings/my-bookings", nil)
	if err != nil {
		t.Fatal(err)
	}
	listReq.Header.Set("Authorization", "Bearer "+signup.Token)
	listResp, err := http.DefaultClient.Do(listReq)
	if err != nil {
		t.Fatal(err)
	}
	defer listResp.Body.Close()
	if listResp.StatusCode != http.StatusOK {
		t.Fatalf("my-bookings: expected 200, got %d", listResp.StatusCode)
	}
	var listed struct {
		Results int `json:"results"`
		Data    struct {
			Bookings []struct {
				Price float64 `json:"price"`
				Paid  bool    `json:"paid"`
				Tour  struct {
					Name string `json:"name"`
				} `json:"tour"`
			} `json:"bookings"`
		} `json:"data"`
	}
	if err := json.NewDecoder(listResp.Body).Decode(&listed); err != nil {
		t.Fatal(err)
	}
	if listed.Results != 1 {
		t.Fatalf("expected 1 booking, got %d", listed.Results)
	}
	got := listed.Data.Bookings[0]
	if got.Price != 397 {
		t.Errorf("expected price 397, got %v", got.Price)
	}
	if !got.Paid {
		t.Error("expected booking to be marked paid")
	}
	if got.Tour.Name != "The Forest Hiker" {
		t.Errorf("expected populated tour name, got %q", got.Tour.Name)
	}
}

func signWebhookPayload(payload []byte, secret string) string {
	ts := fmt.Sprintf("%d", time.Now().Unix())
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(payload)
	return "t=" + ts + ",v1=" + hex.EncodeToString(mac.Sum(nil))
}
