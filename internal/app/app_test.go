package app

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/drstein77/salesdash/internal/config"
	"github.com/drstein77/salesdash/internal/logger"
	"github.com/drstein77/salesdash/internal/sheet"
)

func options(t *testing.T, args ...string) *config.Options {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	o := config.NewOptions()
	o.RegisterFlags(fs)
	require.NoError(t, fs.Parse(append([]string{"--log-level", "error"}, args...)))
	return o
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const salesCSV = "Order_Date,Sales_Amount,Product_Category\n" +
	"41760,100,A\n" +
	"41791,200,B\n" +
	"bad,50,A\n"

func TestRunReport(t *testing.T) {
	path := writeFile(t, "sales.csv", salesCSV)
	var out bytes.Buffer

	require.NoError(t, RunReport(context.Background(), options(t), path, "", &out))

	text := out.String()
	assert.Contains(t, text, "Sales Report: sales.csv")
	assert.Contains(t, text, "Total Sales:        $300.00")
	assert.Contains(t, text, "Average Sale Value: $150.00")
	assert.Contains(t, text, "Total Transactions: 2")
	assert.Contains(t, text, "2014-05")
}

func TestRunReport_Bundle(t *testing.T) {
	path := writeFile(t, "sales.csv", salesCSV)
	bundle := filepath.Join(t.TempDir(), "out.zip")
	var out bytes.Buffer

	require.NoError(t, RunReport(context.Background(), options(t), path, bundle, &out))

	zr, err := zip.OpenReader(bundle)
	require.NoError(t, err)
	defer zr.Close()
	assert.Len(t, zr.File, 5)
}

func TestRunReport_CustomColumns(t *testing.T) {
	path := writeFile(t, "custom.csv", "Day,Revenue,Segment\n2024-01-03,10,Retail\n")
	var out bytes.Buffer

	err := RunReport(context.Background(),
		options(t, "--date-column", "Day", "--amount-column", "Revenue", "--category-column", "Segment"),
		path, "", &out)
	require.NoError(t, err)

	assert.Contains(t, out.String(), "Total Sales:        $10.00")
	assert.NotContains(t, out.String(), "Notices")
}

func TestRunReport_Errors(t *testing.T) {
	var out bytes.Buffer

	err := RunReport(context.Background(), options(t), filepath.Join(t.TempDir(), "missing.csv"), "", &out)
	assert.ErrorContains(t, err, "opening spreadsheet")

	path := writeFile(t, "sales.txt", salesCSV)
	err = RunReport(context.Background(), options(t), path, "", &out)
	assert.ErrorIs(t, err, sheet.ErrUnsupportedFormat)
}

func TestNewServer_BadLogLevel(t *testing.T) {
	_, err := NewServer(context.Background(), options(t, "--log-level", "loud"))
	assert.Error(t, err)
}

func TestRunReport_XLS(t *testing.T) {
	var out bytes.Buffer

	require.NoError(t, RunReport(context.Background(), options(t), "../sheet/testdata/sales.xls", "", &out))

	text := out.String()
	assert.Contains(t, text, "Total Sales:        $1,746.84")
	assert.Contains(t, text, "Average Sale Value: $436.71")
	assert.Contains(t, text, "Total Transactions: 5")
	for _, month := range []string{"2014-05", "2014-06", "2014-07"} {
		assert.Contains(t, text, month)
	}
	assert.NotContains(t, text, "1905-")
}

func TestServe_DrainsOpenRequests(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	server, err := NewServer(ctx, options(t, "--database", ""))
	require.NoError(t, err)
	core, logs := observer.New(zap.InfoLevel)
	server.Log = logger.Wrap(zap.New(core))
	server.shutdownTimeout = time.Minute

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	served := make(chan error, 1)
	go func() {
		served <- server.serve(ln)
	}()

	body, upload := io.Pipe()
	req, err := http.NewRequest(http.MethodPost, "http://"+ln.Addr().String()+"/api/v0/reports?name=sales.csv", body)
	require.NoError(t, err)
	// The client sends the body only once the handler starts reading it.
	req.Header.Set("Expect", "100-continue")
	client := &http.Client{Transport: &http.Transport{ExpectContinueTimeout: time.Minute}}

	type result struct {
		status int
		err    error
	}
	responded := make(chan result, 1)
	go func() {
		resp, err := client.Do(req)
		if err != nil {
			responded <- result{err: err}
			return
		}
		_ = resp.Body.Close()
		responded <- result{status: resp.StatusCode}
	}()

	_, err = upload.Write([]byte(salesCSV[:20]))
	require.NoError(t, err)

	cancel()
	select {
	case err := <-served:
		t.Fatalf("serve returned while a request was open: %v", err)
	case <-time.After(100 * time.Millisecond):
	}

	_, err = upload.Write([]byte(salesCSV[20:]))
	require.NoError(t, err)
	require.NoError(t, upload.Close())

	res := <-responded
	require.NoError(t, res.err)
	assert.Equal(t, http.StatusOK, res.status)

	require.NoError(t, <-served)
	assert.Equal(t, 1, logs.FilterMessage("server stopped gracefully").Len())
	assert.Equal(t, 1, logs.FilterMessage("request served").Len())
}

func TestServe_ListenError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	server, err := NewServer(context.Background(), options(t, "--database", "", "--address", ln.Addr().String()))
	require.NoError(t, err)

	assert.ErrorContains(t, server.Serve(), "listen")
}
