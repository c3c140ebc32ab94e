package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"github.com/jun/wopigate/internal/access"
	"github.com/jun/wopigate/internal/adapter/dynamo"
	"github.com/jun/wopigate/internal/adapter/s3store"
	"github.com/jun/wopigate/internal/audit"
	"github.com/jun/wopigate/internal/crypto"
	"github.com/jun/wopigate/internal/discovery"
	"github.com/jun/wopigate/internal/handler"
	"github.com/jun/wopigate/internal/launch"
	"github.com/jun/wopigate/internal/secret"
	"github.com/jun/wopigate/internal/token"
)

// Config is the gateway configuration, read from the environment.
type Config struct {
	DevMode          bool
	ServerURL        string
	PublicURL        string
	Lang             string
	Capabilities     map[string]interface{}
	RevokeTokens     bool
	DiscoveryTimeout time.Duration
	RoutePrefix      string
	FrontendURL      string

	TokensTable    string
	DiscoveryTable string
	DocumentsTable string
	SessionsTable  string
	TracesTable    string
	BlobBucket     string
	KMSKeyID       string
	JWTSecretParam string
}

func getenv(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

// LoadConfig reads the configuration from environment variables.
func LoadConfig() (Config, error) {
	cfg := Config{
		DevMode:        os.Getenv("DEV_MODE") == "true",
		ServerURL:      getenv("WOPI_SERVER_URL", "http://localhost:9980"),
		PublicURL:      getenv("WOPI_PUBLIC_URL", "https://localhost/lool"),
		Lang:           getenv("WOPI_LANG", "fr"),
		RevokeTokens:   true,
		RoutePrefix:    strings.TrimRight(getenv("ROUTE_PREFIX", "/lool"), "/"),
		FrontendURL:    getenv("FRONTEND_URL", "http://localhost:3000"),
		TokensTable:    getenv("TOKENS_TABLE", "WopiTokens"),
		DiscoveryTable: getenv("DISCOVERY_TABLE", "WopiDiscovery"),
		DocumentsTable: getenv("DOCUMENTS_TABLE", "Documents"),
		SessionsTable:  getenv("SESSIONS_TABLE", "Sessions"),
		TracesTable:    getenv("TRACES_TABLE", "Traces"),
		BlobBucket:     getenv("BLOB_BUCKET", "wopigate-documents"),
		KMSKeyID:       getenv("KMS_KEY_ID", "alias/wopigate-token-key"),
		JWTSecretParam: getenv("JWT_SECRET_PARAM", secret.ParamJWTSecret),
	}

	if v := os.Getenv("WOPI_REVOKE_TOKENS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid WOPI_REVOKE_TOKENS %q: %w", v, err)
		}
		cfg.RevokeTokens = b
	}

	timeout, err := time.ParseDuration(getenv("DISCOVERY_TIMEOUT", "10s"))
	if err != nil {
		return cfg, fmt.Errorf("invalid DISCOVERY_TIMEOUT: %w", err)
	}
	cfg.DiscoveryTimeout = timeout

	cfg.Capabilities = map[string]interface{}{}
	if v := os.Getenv("WOPI_SERVER_CAPABILITIES"); v != "" {
		if err := json.Unmarshal([]byte(v), &cfg.Capabilities); err != nil {
			return cfg, fmt.Errorf("invalid WOPI_SERVER_CAPABILITIES: %w", err)
		}
	}
	return cfg, nil
}

// App holds the dependencies for the Lambda function.
type App struct {
	wopiHandler *handler.WopiHandler
	loolHandler *handler.LoolHandler
	discovery   *discovery.Cache
	cfg         Config
	logger      *slog.Logger
}

// NewApp initializes the application dependencies.
func NewApp(ctx context.Context, logger *slog.Logger) *App {
	cfg, err := LoadConfig()
	if err != nil {
		panic(fmt.Sprintf("invalid configuration: %v", err))
	}

	var (
		dynamoClient   *dynamodb.Client
		s3Client       *s3.Client
		encryptor      crypto.Encryptor
		resolver       secret.Resolver
		tokenStore     token.Store
		discoveryStore discovery.Store
	)
	if cfg.DevMode {
		// In-memory collaborators, seeded with a demo document and session.
		encryptor = crypto.NewMockEncryptor()
		resolver = secret.NewEnvResolver()
		tokenStore = token.NewMockStore()
		discoveryStore = discovery.NewMockStore()
		logger.Info("using in-memory stores", "dev_mode", true)
	} else {
		awsCfg, err := config.LoadDefaultConfig(ctx)
		if err != nil {
			panic(fmt.Sprintf("unable to load SDK config, %v", err))
		}
		dynamoClient = dynamodb.NewFromConfig(awsCfg)
		s3Client = s3.NewFromConfig(awsCfg)
		encryptor = crypto.NewKMSService(kms.NewFromConfig(awsCfg), cfg.KMSKeyID)
		resolver = secret.NewSSMResolver(ssm.NewFromConfig(awsCfg))
		tokenStore = token.NewDynamoStore(dynamoClient, cfg.TokensTable)
		discoveryStore = discovery.NewDynamoStore(dynamoClient, cfg.DiscoveryTable)
	}

	jwtSecret := secret.ResolveOr(ctx, resolver, logger, cfg.JWTSecretParam, "default-dev-secret")

	sessions := dynamo.NewSessionStore(dynamoClient, cfg.SessionsTable)
	documents := dynamo.NewDocumentStore(dynamoClient, cfg.DocumentsTable)
	blobs := s3store.NewBlobStore(s3Client, cfg.BlobBucket)
	tracer := audit.NewDynamoTracer(dynamoClient, cfg.TracesTable)
	if cfg.DevMode {
		seedDemo(ctx, sessions, documents, blobs, jwtSecret, logger)
	}

	resolverAccess := access.NewResolver(sessions, documents)
	tokens := token.NewManager(tokenStore, sessions, resolverAccess, encryptor)
	cache := discovery.NewCache(cfg.ServerURL, cfg.DiscoveryTimeout, discoveryStore, logger)

	wopiHandler := handler.NewWopiHandler(tokens, resolverAccess, documents, blobs, tracer, sessions, handler.WopiConfig{
		JWTSecret:    jwtSecret,
		Capabilities: cfg.Capabilities,
		RevokeTokens: cfg.RevokeTokens,
	}, logger)
	loolHandler := handler.NewLoolHandler(tokens, documents, sessions, cache, launch.NewBuilder(cfg.PublicURL, cfg.Lang), jwtSecret, logger)

	return &App{
		wopiHandler: wopiHandler,
		loolHandler: loolHandler,
		discovery:   cache,
		cfg:         cfg,
		logger:      logger,
	}
}

// Warmup refreshes the discovery cache once. A failure is logged; the
// gateway keeps serving from whatever was stored before.
func (app *App) Warmup(ctx context.Context) {
	if err := app.discovery.Refresh(ctx); err != nil {
		app.logger.Warn("initial discovery failed", "server", app.cfg.ServerURL, "err", err)
	}
}

// HandleRequest routes API Gateway requests to the appropriate handler.
func (app *App) HandleRequest(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	path := req.Path
	method := req.HTTPMethod

	app.logger.Debug("request", "method", method, "path", path)

	// CORS Preflight
	if method == "OPTIONS" {
		return app.corsResponse(events.APIGatewayProxyResponse{StatusCode: 204}), nil
	}

	if app.cfg.RoutePrefix != "" && strings.HasPrefix(path, app.cfg.RoutePrefix+"/") {
		path = strings.TrimPrefix(path, app.cfg.RoutePrefix)
	}

	if req.PathParameters == nil {
		req.PathParameters = make(map[string]string)
	}
	if req.QueryStringParameters == nil {
		req.QueryStringParameters = make(map[string]string)
	}

	parts := strings.Split(strings.Trim(path, "/"), "/")

	switch {
	case path == "/discover" && method == "GET":
		return app.corsResponse(app.must(app.loolHandler.Discover(ctx, req))), nil

	case path == "/capabilities" && method == "GET":
		return app.corsResponse(app.must(app.loolHandler.Capabilities(ctx, req))), nil

	// /documents/{id}/open
	case len(parts) == 3 && parts[0] == "documents" && parts[2] == "open" && method == "GET":
		req.PathParameters["id"] = parts[1]
		return app.must(app.loolHandler.Open(ctx, req)), nil

	// /wopi/files/{id}
	case len(parts) == 3 && parts[0] == "wopi" && parts[1] == "files" && method == "GET":
		req.PathParameters["id"] = parts[2]
		return app.must(app.wopiHandler.CheckFileInfo(ctx, req)), nil

	// /wopi/files/{id}/contents
	case len(parts) == 4 && parts[0] == "wopi" && parts[1] == "files" && parts[3] == "contents":
		req.PathParameters["id"] = parts[2]
		if method == "GET" {
			return app.must(app.wopiHandler.GetFile(ctx, req)), nil
		}
		if method == "POST" {
			return app.must(app.wopiHandler.PutFile(ctx, req)), nil
		}

	// /wopi/documents/{id}/tokens/{token}
	case len(parts) == 5 && parts[0] == "wopi" && parts[1] == "documents" && parts[3] == "tokens":
		req.PathParameters["id"] = parts[2]
		req.PathParameters["token"] = parts[4]
		if method == "DELETE" {
			return app.corsResponse(app.must(app.wopiHandler.InvalidateToken(ctx, req))), nil
		}
		if method == "POST" {
			return app.corsResponse(app.must(app.wopiHandler.DeleteTokenWithBeacon(ctx, req))), nil
		}
	}

	return app.corsResponse(events.APIGatewayProxyResponse{
		StatusCode: http.StatusNotFound,
		Body:       fmt.Sprintf("Not Found: %s %s", method, path),
	}), nil
}

// corsResponse adds CORS headers to an API Gateway response.
func (app *App) corsResponse(resp events.APIGatewayProxyResponse) events.APIGatewayProxyResponse {
	if resp.Headers == nil {
		resp.Headers = make(map[string]string)
	}
	resp.Headers["Access-Control-Allow-Origin"] = app.cfg.FrontendURL
	resp.Headers["Access-Control-Allow-Credentials"] = "true"
	resp.Headers["Access-Control-Allow-Methods"] = "GET,POST,DELETE,OPTIONS"
	resp.Headers["Access-Control-Allow-Headers"] = "Content-Type,Authorization"
	return resp
}

// must unwraps a handler response, turning an error into a bare 500.
func (app *App) must(resp events.APIGatewayProxyResponse, err error) events.APIGatewayProxyResponse {
	if err != nil {
		app.logger.Error("handler error", "err", err)
		return events.APIGatewayProxyResponse{StatusCode: http.StatusInternalServerError, Body: "Internal Server Error"}
	}
	return resp
}
