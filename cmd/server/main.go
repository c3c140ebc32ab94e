package main

import (
	"context"
	"encoding/base64"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	"github.com/jun/wopigate/internal/app"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	if err := godotenv.Load(); err != nil {
		logger.Info("no .env file loaded", "err", err)
	}

	application := app.NewApp(context.Background(), logger)
	go application.Warmup(context.Background())

	r := mux.NewRouter()
	r.Use(loggingMiddleware(logger))
	r.PathPrefix("/").HandlerFunc(proxy(application, logger))

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	logger.Info("starting local server", "port", port)
	if err := http.ListenAndServe(":"+port, r); err != nil {
		logger.Error("server failed", "err", err)
		os.Exit(1)
	}
}

// proxy translates net/http requests into API Gateway events, the way the
// Lambda runtime delivers them. Bodies travel base64 encoded so binary
// document content survives the round trip.
func proxy(application *app.App, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Bad Request", http.StatusBadRequest)
			return
		}

		headers := make(map[string]string)
		for k, v := range r.Header {
			headers[k] = v[0]
		}

		queryParams := make(map[string]string)
		for k, v := range r.URL.Query() {
			queryParams[k] = v[0]
		}

		req := events.APIGatewayProxyRequest{
			Path:                  r.URL.Path,
			HTTPMethod:            r.Method,
			Headers:               headers,
			QueryStringParameters: queryParams,
			Body:                  base64.StdEncoding.EncodeToString(body),
			IsBase64Encoded:       true,
		}

		resp, err := application.HandleRequest(r.Context(), req)
		if err != nil {
			logger.Error("request failed", "path", r.URL.Path, "err", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		out := []byte(resp.Body)
		if resp.IsBase64Encoded {
			out, err = base64.StdEncoding.DecodeString(resp.Body)
			if err != nil {
				logger.Error("invalid response body", "path", r.URL.Path, "err", err)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}
		}

		for k, v := range resp.Headers {
			w.Header().Set(k, v)
		}
		w.WriteHeader(resp.StatusCode)
		w.Write(out)
	}
}

// loggingMiddleware logs every request with its duration.
func loggingMiddleware(logger *slog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.Info("request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
		})
	}
}
