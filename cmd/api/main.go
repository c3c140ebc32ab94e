package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/jun/wopigate/internal/app"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	application := app.NewApp(context.Background(), logger)
	application.Warmup(context.Background())
	lambda.Start(application.HandleRequest)
}
