package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// RunRecord — run из API.
type RunRecord struct {
	ID          string         `json:"id"`
	Log         string         `json:"log"`
	Input       map[string]any `json:"input"`
	Status      string         `json:"status"`
	TriggerType string         `json:"triggerType"`
	TriggerBy   string         `json:"triggerBy"`
	CreatedAt   string         `json:"createdAt"`
	UpdatedAt   string         `json:"updatedAt"`
}

// IsFinished возвращает true для COMPLETED и FAILED.
func (r *RunRecord) IsFinished() bool {
	return r.Status == "COMPLETED" || r.Status == "FAILED"
}

// Schedule — расписание из API.
type Schedule struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Description    string         `json:"description"`
	CronExpression string         `json:"cronExpression"`
	IsEnabled      bool           `json:"isEnabled"`
	Input          map[string]any `json:"input"`
	NextRunAt      string         `json:"nextRunAt,omitempty"`
	CreatedBy      string         `json:"createdBy"`
	UpdatedBy      string         `json:"updatedBy"`
	CreatedAt      string         `json:"createdAt"`
	UpdatedAt      string         `json:"updatedAt"`
}

// Product — продукт из бизнес-конфигурации.
type Product struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ParamDef — описание параметра шага.
type ParamDef struct {
	Field string `json:"field"`
	Label string `json:"label"`
	Type  string `json:"type"`
}

// Step — шаг procedure.
type Step struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	ParamsDef   []ParamDef `json:"paramsDef"`
}

// Procedure — procedure с шагами.
type Procedure struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Steps []Step `json:"steps"`
}

// --- Request types ---

// TriggerRequest — ручной запуск procedure.
type TriggerRequest struct {
	ProcedureID string                    `json:"procedureId"`
	Product     string                    `json:"product"`
	StepParams  map[string]map[string]any `json:"stepParams"`
}

// CreateScheduleRequest — создание расписания.
type CreateScheduleRequest struct {
	TriggerRequest
	Name           string `json:"name"`
	Description    string `json:"description"`
	CronExpression string `json:"cronExpression"`
	IsEnabled      *bool  `json:"isEnabled,omitempty"`
}

// UpdateScheduleRequest — частичное обновление расписания.
type UpdateScheduleRequest struct {
	ID             string         `json:"id"`
	Name           *string        `json:"name,omitempty"`
	Description    *string        `json:"description,omitempty"`
	CronExpression *string        `json:"cronExpression,omitempty"`
	IsEnabled      *bool          `json:"isEnabled,omitempty"`
	Input          map[string]any `json:"input,omitempty"`
}

// Page — страница списка.
type Page struct {
	Page     int `json:"page,omitempty"`
	PageSize int `json:"pageSize,omitempty"`
}

// --- API response wrappers ---

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// APIError — ошибка, возвращённая API.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("API error: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// --- Client ---

// Client — HTTP-клиент для Integrator API.
type Client struct {
	baseURL    string
	user       string
	httpClient *http.Client
}

// NewClient создаёт клиент для API. user уходит в заголовке X-User.
func NewClient(baseURL, user string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		user:    user,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// --- Runs ---

// TriggerRun запускает procedure.
func (c *Client) TriggerRun(ctx context.Context, req TriggerRequest) (*RunRecord, error) {
	var run RunRecord
	_, err := c.call(ctx, "/api/run-manage/manual_trigger", req, &run)
	return &run, err
}

// ListRuns возвращает страницу runs и общее количество.
func (c *Client) ListRuns(ctx context.Context, page Page) ([]RunRecord, int, error) {
	var runs []RunRecord
	total, err := c.call(ctx, "/api/run-manage/get_run_records", page, &runs)
	return runs, total, err
}

// GetRun возвращает run по ID.
func (c *Client) GetRun(ctx context.Context, id string) (*RunRecord, error) {
	var run RunRecord
	_, err := c.call(ctx, "/api/run-manage/get_run_record", map[string]string{"id": id}, &run)
	return &run, err
}

// WaitRun опрашивает run, пока он не завершится или не отменится ctx.
// При отмене ctx возвращается последнее полученное состояние run.
func (c *Client) WaitRun(ctx context.Context, id string, interval time.Duration) (*RunRecord, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last *RunRecord
	for {
		run, err := c.GetRun(ctx, id)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return last, ctxErr
			}
			return nil, err
		}
		last = run
		if run.IsFinished() {
			return run, nil
		}

		select {
		case <-ctx.Done():
			return run, ctx.Err()
		case <-ticker.C:
		}
	}
}

// --- Schedules ---

// ListSchedules возвращает страницу расписаний и общее количество.
func (c *Client) ListSchedules(ctx context.Context, page Page) ([]Schedule, int, error) {
	var schedules []Schedule
	total, err := c.call(ctx, "/api/run-manage/get_schedules", page, &schedules)
	return schedules, total, err
}

// GetSchedule возвращает расписание по ID.
func (c *Client) GetSchedule(ctx context.Context, id string) (*Schedule, error) {
	var s Schedule
	_, err := c.call(ctx, "/api/run-manage/get_schedule", map[string]string{"id": id}, &s)
	return &s, err
}

// CreateSchedule создаёт расписание.
func (c *Client) CreateSchedule(ctx context.Context, req CreateScheduleRequest) (*Schedule, error) {
	var s Schedule
	_, err := c.call(ctx, "/api/run-manage/create_schedule", req, &s)
	return &s, err
}

// UpdateSchedule обновляет расписание.
func (c *Client) UpdateSchedule(ctx context.Context, req UpdateScheduleRequest) (*Schedule, error) {
	var s Schedule
	_, err := c.call(ctx, "/api/run-manage/update_schedule", req, &s)
	return &s, err
}

// DeleteSchedule удаляет расписание.
func (c *Client) DeleteSchedule(ctx context.Context, id string) error {
	_, err := c.call(ctx, "/api/run-manage/delete_schedule", map[string]string{"id": id}, nil)
	return err
}

// --- Business config ---

// ListProducts возвращает продукты.
func (c *Client) ListProducts(ctx context.Context) ([]Product, error) {
	var products []Product
	_, err := c.call(ctx, "/api/business-config/get_product_list", nil, &products)
	return products, err
}

// ListProcedures возвращает procedures продукта.
func (c *Client) ListProcedures(ctx context.Context, product string) ([]Procedure, error) {
	var procedures []Procedure
	_, err := c.call(ctx, "/api/business-config/get_procedure_list", map[string]string{"product": product}, &procedures)
	return procedures, err
}

// --- HTTP helpers ---

// call отправляет POST с JSON телом и разбирает конверт ответа.
// Возвращает total для списков.
func (c *Client) call(ctx context.Context, path string, body, result any) (int, error) {
	data := []byte("{}")
	if body != nil {
		var err error
		if data, err = json.Marshal(body); err != nil {
			return 0, fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.user != "" {
		req.Header.Set("X-User", c.user)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var er errorResponse
		if err := json.NewDecoder(resp.Body).Decode(&er); err == nil {
			apiErr.Code = er.Error.Code
			apiErr.Message = er.Error.Message
		}
		return 0, apiErr
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return 0, fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		if err := json.Unmarshal(env.Data, result); err != nil {
			return 0, fmt.Errorf("failed to decode data: %w", err)
		}
	}
	return env.Total, nil
}
