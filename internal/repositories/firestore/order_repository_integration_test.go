//go:build integration

package firestore

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	domain "github.com/elfogon/api/internal/domain"
	pconfig "github.com/elfogon/api/internal/platform/config"
	pfirestore "github.com/elfogon/api/internal/platform/firestore"
	"github.com/elfogon/api/internal/repositories"
)

func TestOrderRepositoryIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test skipped in short mode")
	}

	if _, err := exec.LookPath("docker"); err != nil {
		t.Skip("docker not available: " + err.Error())
	}

	ensureDockerDaemon(t)

	port := freePort(t)
	endpoint := fmt.Sprintf("127.0.0.1:%d", port)
	containerID := startFirestoreEmulator(t, port)
	t.Cleanup(func() { stopContainer(containerID) })

	waitForEndpoint(t, endpoint, 30*time.Second)

	cfg := pconfig.FirestoreConfig{
		ProjectID:    "orders-test",
		EmulatorHost: endpoint,
	}

	provider := pfirestore.NewProvider(cfg)
	t.Cleanup(func() {
		_ = provider.Close()
	})

	repo, err := NewOrderRepository(provider)
	if err != nil {
		t.Fatalf("new order repository: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	now := time.Date(2026, 8, 29, 13, 0, 0, 0, time.UTC)
	order := domain.Order{
		ID:            "ord_int_1",
		OrderNumber:   "EF-2026-000001",
		CustomerPhone: "+34600111222",
		Items: []domain.OrderItem{
			{Name: "Parrillada mixta", Quantity: 1, UnitPrice: 1850},
		},
		TotalPrice: 1850,
		Status:     domain.OrderStatusWaitingPayment,
		PaymentInfo: domain.PaymentInfo{
			BankAccount:   "ES91 2100 0418 4502 0005 1332",
			PaymentStatus: domain.PaymentStatusPending,
		},
		Logs: []domain.StatusLogEntry{
			{Status: domain.OrderStatusWaitingPayment, StatusLabel: "Esperando pago", Timestamp: now},
		},
		Priority:  domain.OrderPriorityNormal,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := repo.Insert(ctx, order); err != nil {
		t.Fatalf("insert: %v", err)
	}

	loaded, err := repo.FindByID(ctx, order.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if loaded.OrderNumber != order.OrderNumber || loaded.CurrentStatus() != domain.OrderStatusWaitingPayment {
		t.Fatalf("unexpected order loaded: %+v", loaded)
	}

	// Conditional update succeeds when the expected status matches.
	loaded.Status = domain.OrderStatusCooking
	loaded.PaymentInfo.PaymentStatus = domain.PaymentStatusPaid
	loaded.Logs = append(loaded.Logs, domain.StatusLogEntry{
		Status:      domain.OrderStatusCooking,
		StatusLabel: "En cocina",
		Timestamp:   now.Add(time.Minute),
	})
	updated, err := repo.UpdateWithExpectedStatus(ctx, loaded, domain.OrderStatusWaitingPayment)
	if err != nil {
		t.Fatalf("conditional update: %v", err)
	}
	if updated.CurrentStatus() != domain.OrderStatusCooking {
		t.Fatalf("expected cooking, got %s", updated.CurrentStatus())
	}

	// A stale expectation must surface as a conflict.
	stale := updated
	stale.Status = domain.OrderStatusInTransit
	_, err = repo.UpdateWithExpectedStatus(ctx, stale, domain.OrderStatusWaitingPayment)
	if err == nil {
		t.Fatal("expected conflict for stale expected status")
	}
	var repoErr repositories.RepositoryError
	if !errors.As(err, &repoErr) || !repoErr.IsConflict() {
		t.Fatalf("expected conflict error, got %T %v", err, err)
	}

	// The winning write must remain untouched.
	final, err := repo.FindByID(ctx, order.ID)
	if err != nil {
		t.Fatalf("find after conflict: %v", err)
	}
	if final.CurrentStatus() != domain.OrderStatusCooking {
		t.Fatalf("expected cooking after conflict, got %s", final.CurrentStatus())
	}

	t.Run("counters", func(t *testing.T) {
		counters, err := NewCounterRepository(provider)
		if err != nil {
			t.Fatalf("new counter repository: %v", err)
		}

		const workers = 8
		results := make([]int64, workers)
		var wg sync.WaitGroup
		wg.Add(workers)
		for i := 0; i < workers; i++ {
			go func(idx int) {
				defer wg.Done()
				value, err := counters.Next(ctx, "orders", 1)
				if err != nil {
					t.Errorf("next(%d): %v", idx, err)
					return
				}
				results[idx] = value
			}(i)
		}
		wg.Wait()

		sort.Slice(results, func(i, j int) bool { return results[i] < results[j] })
		for i, val := range results {
			if val != int64(i+1) {
				t.Fatalf("expected sequence %d at position %d, got %d", i+1, i, val)
			}
		}
	})
}

func freePort(t *testing.T) int {
	t.Helper()
	addr, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("unable to allocate port: %v", err)
	}
	defer addr.Close()
	return addr.Addr().(*net.TCPAddr).Port
}

func startFirestoreEmulator(t *testing.T, port int) string {
	t.Helper()
	args := []string{
		"run", "-d", "--rm",
		"-p", fmt.Sprintf("%d:8080", port),
		firestoreEmulatorImage,
		"gcloud", "beta", "emulators", "firestore", "start",
		"--host-port=0.0.0.0:8080",
		"--quiet",
	}

	cmd := exec.Command("docker", args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("failed to start firestore emulator: %v - %s", err, string(out))
	}
	id := strings.TrimSpace(string(out))
	if id == "" {
		t.Fatalf("docker returned empty container id")
	}
	if len(id) > 12 {
		id = id[:12]
	}
	return id
}

func ensureDockerDaemon(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	cmd := exec.CommandContext(ctx, "docker", "info")
	if err := cmd.Run(); err != nil {
		t.Fatalf("docker daemon not available: %v", err)
	}
}

func stopContainer(id string) {
	if id == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	cmd := exec.CommandContext(ctx, "docker", "stop", id)
	_ = cmd.Run()
}

func waitForEndpoint(t *testing.T, endpoint string, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", endpoint, 500*time.Millisecond)
		if err == nil {
			conn.Close()
			return
		}
		time.Sleep(200 * time.Millisecond)
	}
	t.Fatalf("firestore emulator at %s did not become ready within %s", endpoint, timeout)
}

const firestoreEmulatorImage = "gcr.io/google.com/cloudsdktool/cloud-sdk:emulators"
