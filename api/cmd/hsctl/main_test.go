package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hs-classifier/api/internal/form"
)

func withAPI(t *testing.T, status int, body string) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/healthz" {
			_, _ = w.Write([]byte("ok"))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	prevURL, prevTimeout := apiURL, timeout
	apiURL, timeout = srv.URL, 5*time.Second
	t.Cleanup(func() { apiURL, timeout = prevURL, prevTimeout })
}

func testCmd() (*cobra.Command, *bytes.Buffer) {
	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)
	return cmd, &buf
}

func TestClassifyCmd(t *testing.T) {
	withAPI(t, http.StatusOK, `{"status":"success","message":"Classification successful","predictions":[
		{"hs_code":"8471","description":"Automatic data processing machines","confidence_score":0.92},
		{"hs_code":"8473","description":"Parts and accessories","confidence_score":0.31}]}`)
	cmd, out := testCmd()

	err := runClassify(cmd, []string{"Laptop", "computer"})

	require.NoError(t, err)
	got := out.String()
	assert.Contains(t, got, "Classification Results")
	assert.Contains(t, got, "#1")
	assert.Contains(t, got, "8471")
	assert.Contains(t, got, "92%")
	assert.Contains(t, got, "31%")
	assert.Contains(t, got, "Disclaimer:")
}

func TestClassifyCmd_ErrorExitsNonZero(t *testing.T) {
	withAPI(t, http.StatusInternalServerError, `{"status":"error","message":"API Error: 429 - quota"}`)
	cmd, out := testCmd()

	err := runClassify(cmd, []string{"toy"})

	require.Error(t, err)
	assert.Equal(t, "API Error: 429 - quota", err.Error())
	assert.Contains(t, out.String(), "XXXX")
}

func TestClassifyCmd_BlankDescription(t *testing.T) {
	withAPI(t, http.StatusOK, `{}`)
	cmd, _ := testCmd()

	err := runClassify(cmd, []string{"   "})

	require.Error(t, err)
	assert.Equal(t, form.MsgEmptyDescription, err.Error())
}

func TestReferenceAndHealthCmds(t *testing.T) {
	withAPI(t, http.StatusOK, `{}`)

	cmd, out := testCmd()
	require.NoError(t, runReference(cmd, nil))
	assert.Contains(t, out.String(), "9503")
	assert.Contains(t, out.String(), "HS Code Reference")

	cmd, out = testCmd()
	require.NoError(t, runHealth(cmd, nil))
	assert.Contains(t, out.String(), "ok")
}
