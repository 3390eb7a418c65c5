package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"advisor-core/pkg/config"
	"advisor-core/pkg/db"
)

type HealthStatus struct {
	Service   string    `json:"service"`
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type HealthReport struct {
	Overall  string         `json:"overall"`
	Services []HealthStatus `json:"services"`
}

func main() {
	fmt.Println("Advisor Health Check")
	fmt.Println("====================")
	fmt.Println()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("config: %v\n", err)
		os.Exit(1)
	}

	report := HealthReport{
		Overall:  "HEALTHY",
		Services: make([]HealthStatus, 0),
	}

	report.Services = append(report.Services, checkDatabase(ctx, cfg))
	report.Services = append(report.Services, checkUpstream(ctx, "News provider", cfg.NewsBaseURL+"/search?limit=1"))
	report.Services = append(report.Services, checkUpstream(ctx, "Market provider", cfg.MarketBaseURL+"/get_ticker?symbol=BTC-USDT"))
	report.Services = append(report.Services, checkAPIServer(ctx, cfg))
	if cfg.GRPCHealthAddr != "" {
		report.Services = append(report.Services, checkGRPCHealth(ctx, cfg.GRPCHealthAddr))
	}

	for _, svc := range report.Services {
		if svc.Status == "UNHEALTHY" {
			report.Overall = "UNHEALTHY"
			break
		} else if svc.Status == "DEGRADED" && report.Overall != "UNHEALTHY" {
			report.Overall = "DEGRADED"
		}
	}

	fmt.Println("Results:")
	fmt.Println("--------")
	for _, svc := range report.Services {
		statusIcon := "✓"
		if svc.Status == "UNHEALTHY" {
			statusIcon = "✗"
		} else if svc.Status == "DEGRADED" {
			statusIcon = "⚠"
		}
		fmt.Printf("%s %-20s %s %s\n", statusIcon, svc.Service, svc.Status, svc.Message)
	}

	fmt.Println()
	fmt.Printf("Overall Status: %s\n", report.Overall)

	if len(os.Args) > 1 && os.Args[1] == "--json" {
		jsonData, _ := json.MarshalIndent(report, "", "  ")
		fmt.Println(string(jsonData))
	}

	if report.Overall == "UNHEALTHY" {
		os.Exit(1)
	}
}

func newStatus(service string) HealthStatus {
	return HealthStatus{Service: service, Status: "HEALTHY", Timestamp: time.Now()}
}

func checkDatabase(ctx context.Context, cfg *config.Config) HealthStatus {
	status := newStatus("Chat history DB")

	database, err := db.New(cfg.DBPath)
	if err != nil {
		status.Status = "UNHEALTHY"
		status.Message = fmt.Sprintf("Open failed: %v", err)
		return status
	}
	defer database.Close()

	if err := database.Ping(ctx); err != nil {
		status.Status = "UNHEALTHY"
		status.Message = fmt.Sprintf("Ping failed: %v", err)
		return status
	}
	ids, err := database.Queries().ChatIDs(ctx)
	if err != nil {
		status.Status = "DEGRADED"
		status.Message = fmt.Sprintf("Schema not applied: %v", err)
		return status
	}
	status.Message = fmt.Sprintf("%s (%d chats)", cfg.DBPath, len(ids))
	return status
}

// checkUpstream only probes reachability; a provider outage degrades advice but never fails it.
func checkUpstream(ctx context.Context, name, url string) HealthStatus {
	status := newStatus(name)

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	resp, err := (&http.Client{Timeout: 5 * time.Second}).Do(req)
	if err != nil {
		status.Status = "DEGRADED"
		status.Message = fmt.Sprintf("Not reachable: %v", err)
		return status
	}
	resp.Body.Close()
	status.Message = fmt.Sprintf("HTTP %d", resp.StatusCode)
	return status
}

func checkAPIServer(ctx context.Context, cfg *config.Config) HealthStatus {
	status := newStatus("API Server")
	client := &http.Client{Timeout: 5 * time.Second}

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("http://localhost:%s/api/providers", cfg.Port), nil)
	resp, err := client.Do(req)
	if err != nil {
		status.Status = "UNHEALTHY"
		status.Message = fmt.Sprintf("Not reachable: %v", err)
		return status
	}
	defer resp.Body.Close()

	var providers map[string]struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&providers); err != nil {
		status.Status = "DEGRADED"
		status.Message = fmt.Sprintf("HTTP %d, unreadable providers", resp.StatusCode)
		return status
	}
	for name, p := range providers {
		if !p.Enabled {
			status.Status = "DEGRADED"
		}
		status.Message += fmt.Sprintf("%s=%t ", name, p.Enabled)
	}
	return status
}

func checkGRPCHealth(ctx context.Context, addr string) HealthStatus {
	status := newStatus("gRPC health")

	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		status.Status = "UNHEALTHY"
		status.Message = err.Error()
		return status
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	res, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{})
	if err != nil {
		status.Status = "UNHEALTHY"
		status.Message = err.Error()
		return status
	}
	if res.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		status.Status = "DEGRADED"
	}
	status.Message = res.GetStatus().String()
	return status
}
