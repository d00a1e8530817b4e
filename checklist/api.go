package checklist

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

type ApiSettings struct {
	HttpTimeout        time.Duration
	HttpConnectTimeout time.Duration
	HttpTlsTimeout     time.Duration
}

func DefaultApiSettings() *ApiSettings {
	return &ApiSettings{
		HttpTimeout:        30 * time.Second,
		HttpConnectTimeout: 5 * time.Second,
		HttpTlsTimeout:     5 * time.Second,
	}
}

func newHttpClient(settings *ApiSettings) *http.Client {
	// see https://medium.com/@nate510/don-t-use-go-s-default-http-client-4804cb19f779
	dialer := &net.Dialer{
		Timeout: settings.HttpConnectTimeout,
	}
	transport := &http.Transport{
		DialContext:         dialer.DialContext,
		TLSHandshakeTimeout: settings.HttpTlsTimeout,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   settings.HttpTimeout,
	}
}

// the rest collaborator. every call carries the credential headers
type ItemApi interface {
	ListItems(ctx context.Context) ([]*Item, error)
	AddItem(ctx context.Context, name string, category string) (*Item, error)
	EditItem(ctx context.Context, uid string, name string, category string) error
	DeleteItem(ctx context.Context, uid string) error
	// returns the authoritative item after the server flips it
	ToggleItem(ctx context.Context, uid string) (*Item, error)
}

type ChecklistApi struct {
	apiUrl     string
	credential *CredentialContext
	client     *http.Client
}

func NewChecklistApiWithDefaults(apiUrl string, credential *CredentialContext) *ChecklistApi {
	return NewChecklistApi(apiUrl, credential, DefaultApiSettings())
}

func NewChecklistApi(apiUrl string, credential *CredentialContext, settings *ApiSettings) *ChecklistApi {
	return &ChecklistApi{
		apiUrl:     strings.TrimSuffix(apiUrl, "/"),
		credential: credential,
		client:     newHttpClient(settings),
	}
}

func (self *ChecklistApi) ListItems(ctx context.Context) ([]*Item, error) {
	items := []*Item{}
	statusCode, status, err := self.get(ctx, "list", "/items/", nil, &items)
	if err != nil {
		return nil, err
	}
	if !isSuccess(statusCode) {
		// the list feeds the whole mirror, so any failure is a transport failure for the caller
		return nil, &TransportError{
			Op:  "list",
			Err: newOperationError("list", statusCode, status),
		}
	}
	return items, nil
}

func (self *ChecklistApi) AddItem(ctx context.Context, name string, category string) (*Item, error) {
	item := &Item{}
	query := url.Values{}
	query.Set("name", name)
	query.Set("category", category)
	statusCode, status, err := self.get(ctx, "add", "/items/add", query, item)
	if err != nil {
		return nil, err
	}
	if !isSuccess(statusCode) {
		return nil, newOperationError("add", statusCode, status)
	}
	return item, nil
}

func (self *ChecklistApi) EditItem(ctx context.Context, uid string, name string, category string) error {
	query := url.Values{}
	query.Set("uid", uid)
	query.Set("name", name)
	query.Set("category", category)
	statusCode, status, err := self.get(ctx, "edit", "/items/edit", query, nil)
	if err != nil {
		return err
	}
	if !isSuccess(statusCode) {
		return newOperationError("edit", statusCode, status)
	}
	return nil
}

func (self *ChecklistApi) DeleteItem(ctx context.Context, uid string) error {
	query := url.Values{}
	query.Set("uid", uid)
	statusCode, status, err := self.get(ctx, "delete", "/items/delete", query, nil)
	if err != nil {
		return err
	}
	if !isSuccess(statusCode) {
		return newOperationError("delete", statusCode, status)
	}
	return nil
}

func (self *ChecklistApi) ToggleItem(ctx context.Context, uid string) (*Item, error) {
	item := &Item{}
	query := url.Values{}
	query.Set("uid", uid)
	statusCode, status, err := self.get(ctx, "toggle", "/items/toggle", query, item)
	if err != nil {
		return nil, err
	}
	if !isSuccess(statusCode) {
		return nil, newOperationError("toggle", statusCode, status)
	}
	return item, nil
}

// `result` is decoded only on success and may be nil when the body is ignored
func (self *ChecklistApi) get(
	ctx context.Context,
	op string,
	path string,
	query url.Values,
	result any,
) (statusCode int, status string, returnErr error) {
	requestUrl := fmt.Sprintf("%s%s", self.apiUrl, path)
	if 0 < len(query) {
		requestUrl = fmt.Sprintf("%s?%s", requestUrl, query.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, "GET", requestUrl, nil)
	if err != nil {
		returnErr = &TransportError{Op: op, Err: err}
		return
	}
	for k, vs := range self.credential.Headers() {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	r, err := self.client.Do(req)
	if err != nil {
		returnErr = &TransportError{Op: op, Err: err}
		return
	}
	defer r.Body.Close()

	statusCode = r.StatusCode
	status = r.Status

	responseBodyBytes, err := io.ReadAll(r.Body)
	if err != nil {
		returnErr = &TransportError{Op: op, Err: err}
		return
	}

	if !isSuccess(statusCode) || result == nil {
		return
	}

	if err := json.Unmarshal(responseBodyBytes, result); err != nil {
		returnErr = &TransportError{Op: op, Err: err}
		return
	}
	return
}

func isSuccess(statusCode int) bool {
	return 200 <= statusCode && statusCode < 300
}
