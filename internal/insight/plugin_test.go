package insight

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/HerbHall/hydrosim/internal/event"
	"github.com/HerbHall/hydrosim/internal/insight/forecast"
	"github.com/HerbHall/hydrosim/internal/insight/horizon"
	"github.com/HerbHall/hydrosim/internal/insight/ingest"
	"github.com/HerbHall/hydrosim/pkg/plugin"
	"github.com/HerbHall/hydrosim/pkg/plugin/plugintest"
	"go.uber.org/zap"
)

func TestContract(t *testing.T) {
	plugintest.TestPluginContract(t, func() plugin.Plugin { return New() })
}

const csvHeader = "day,time,LeafCount,hole,temperature,humidity,light,pH,EC,TDS,WaterTemp"

// growthCSV returns days of four readings per day with a steadily rising
// leaf count. A zero slope keeps every count at zero.
func growthCSV(days int, slope float64) string {
	var b strings.Builder
	b.WriteString(csvHeader + "\n")
	for d := 1; d <= days; d++ {
		for i, clock := range []string{"0.00", "6.00", "12.00", "18.30"} {
			leaves := slope * float64(d*4+i)
			fmt.Fprintf(&b, "%d,%s,%.2f,1,%.1f,%d,%d,6.%d,%d,%d,%.1f\n",
				d, clock, leaves, 25.5+float64(i)/2, 60+d%5, 2400+100*i, 3+d%4, 1400+10*d, 700+5*d, 26+float64(d%3)/2)
		}
	}
	return b.String()
}

func mustTable(t *testing.T, csvText string) *ingest.Table {
	t.Helper()
	tbl, err := ingest.ReadCSV(strings.NewReader(csvText))
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	return tbl
}

func newTestModule(t *testing.T, bus plugin.EventBus) *Module {
	t.Helper()
	m := New()
	if err := m.Init(context.Background(), plugin.Dependencies{Logger: zap.NewNop(), Bus: bus}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	m.cfg.SampleData = ""
	m.cfg.PretrainedModel = ""
	return m
}

func mustIngest(t *testing.T, m *Module, csvText string) *Session {
	t.Helper()
	sess, err := m.Ingest("test.csv", mustTable(t, csvText))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	return sess
}

func intPtr(v int) *int { return &v }

func TestIngest(t *testing.T) {
	t.Parallel()

	m := newTestModule(t, nil)
	sess := mustIngest(t, m, growthCSV(10, 0.25))
	if sess.ID == "" {
		t.Fatal("session id is empty")
	}
	if len(sess.Series) != 40 || sess.UniqueDays != 10 {
		t.Errorf("rows = %d, unique days = %d; want 40, 10", len(sess.Series), sess.UniqueDays)
	}
	if !m.HasSession(sess.ID) {
		t.Error("HasSession() = false for new session")
	}
	if m.HasSession("missing") {
		t.Error("HasSession() = true for unknown id")
	}
}

func TestIngest_FormatError(t *testing.T) {
	t.Parallel()

	m := newTestModule(t, nil)
	_, err := m.Ingest("bad.csv", mustTable(t, "day,time,LeafCount\n1,0.00,2\n"))
	var fe *ingest.FormatError
	if !errors.As(err, &fe) {
		t.Fatalf("Ingest() error = %v, want *ingest.FormatError", err)
	}
	if m.sessions.Len() != 0 {
		t.Errorf("sessions = %d after failed ingest, want 0", m.sessions.Len())
	}
}

func TestForecast_DefaultHorizon(t *testing.T) {
	t.Parallel()

	m := newTestModule(t, nil)
	sess := mustIngest(t, m, growthCSV(10, 0.25))

	res, err := m.Forecast(context.Background(), sess.ID, ForecastRequest{})
	if err != nil {
		t.Fatalf("Forecast: %v", err)
	}
	wantPeriods := m.cfg.MaxDay - 10
	if res.Periods != wantPeriods || len(res.Forecast) != wantPeriods {
		t.Errorf("periods = %d, rows = %d; want %d", res.Periods, len(res.Forecast), wantPeriods)
	}
	if res.Mode != ModeFit || res.OptimalityWindow != WindowHistory {
		t.Errorf("mode = %q, window = %q", res.Mode, res.OptimalityWindow)
	}
	if len(res.History) != len(sess.Series) {
		t.Errorf("history = %d points, want %d", len(res.History), len(sess.Series))
	}

	last := sess.Series.Last().Timestamp
	if got := res.Forecast[0].Timestamp; !got.Equal(last.AddDate(0, 0, 1)) {
		t.Errorf("first forecast row = %v, want one day after %v", got, last)
	}
	for i, p := range res.Forecast {
		if p.Predicted < 0 || p.Lower < 0 || p.Upper < 0 {
			t.Fatalf("row %d has a negative value: %+v", i, p)
		}
		if p.Lower > p.Predicted || p.Predicted > p.Upper {
			t.Fatalf("row %d interval does not bracket the estimate: %+v", i, p)
		}
	}
	if res.Summary.GrowthPercent == nil || res.GrowthError != "" {
		t.Errorf("summary = %+v, growth error = %q", res.Summary, res.GrowthError)
	}
	if !strings.Contains(res.SummaryText, "Leaf count is forecast to") {
		t.Errorf("summary text = %q", res.SummaryText)
	}
	if res.Advisories == nil {
		t.Error("advisories must be an empty slice, not nil")
	}
}

func TestForecast_ExplicitPeriodsAndCap(t *testing.T) {
	t.Parallel()

	m := newTestModule(t, nil)
	sess := mustIngest(t, m, growthCSV(10, 0.25))

	res, err := m.Forecast(context.Background(), sess.ID, ForecastRequest{
		Periods:     intPtr(7),
		WeightGrams: intPtr(100),
	})
	if err != nil {
		t.Fatalf("Forecast: %v", err)
	}
	if len(res.Forecast) != 7 {
		t.Errorf("rows = %d, want 7", len(res.Forecast))
	}
	want, _ := horizon.DefaultCapTable().CapForWeight(100)
	if res.Cap == nil || *res.Cap != want {
		t.Fatalf("cap = %v, want %v", res.Cap, want)
	}
	for _, p := range res.Forecast {
		if p.Cap == nil || *p.Cap != want {
			t.Fatalf("row cap = %v, want %v", p.Cap, want)
		}
	}

	direct := 12.5
	res, err = m.Forecast(context.Background(), sess.ID, ForecastRequest{
		Periods:     intPtr(7),
		WeightGrams: intPtr(100),
		Cap:         &direct,
	})
	if err != nil {
		t.Fatalf("Forecast: %v", err)
	}
	if *res.Cap != direct {
		t.Errorf("cap = %v, want explicit %v", *res.Cap, direct)
	}
}

func TestForecast_ZeroBaseline(t *testing.T) {
	t.Parallel()

	m := newTestModule(t, nil)
	sess := mustIngest(t, m, growthCSV(5, 0))

	res, err := m.Forecast(context.Background(), sess.ID, ForecastRequest{Periods: intPtr(5)})
	if err != nil {
		t.Fatalf("Forecast: %v", err)
	}
	if res.GrowthError == "" || res.Summary.GrowthPercent != nil {
		t.Errorf("growth error = %q, percent = %v; want error and nil percent", res.GrowthError, res.Summary.GrowthPercent)
	}
	if len(res.Forecast) != 5 {
		t.Errorf("rows = %d, want 5", len(res.Forecast))
	}
}

func TestForecast_Errors(t *testing.T) {
	t.Parallel()

	m := newTestModule(t, nil)
	sess := mustIngest(t, m, growthCSV(10, 0.25))
	oneDay := mustIngest(t, m, growthCSV(1, 0.25))
	negative := -1.0

	tests := []struct {
		name    string
		session string
		req     ForecastRequest
		check   func(error) bool
	}{
		{
			name:    "unknown session",
			session: "nope",
			check:   func(err error) bool { return errors.Is(err, ErrSessionNotFound) },
		},
		{
			name:    "horizon below minimum",
			session: sess.ID,
			req:     ForecastRequest{Periods: intPtr(2)},
			check: func(err error) bool {
				var he *horizon.InvalidHorizonError
				return errors.As(err, &he)
			},
		},
		{
			name:    "unknown weight",
			session: sess.ID,
			req:     ForecastRequest{WeightGrams: intPtr(7)},
			check: func(err error) bool {
				var we *horizon.UnknownWeightError
				return errors.As(err, &we)
			},
		},
		{
			name:    "negative cap",
			session: sess.ID,
			req:     ForecastRequest{Cap: &negative},
			check: func(err error) bool {
				var re *RequestError
				return errors.As(err, &re) && re.Field == "cap"
			},
		},
		{
			name:    "bad mode",
			session: sess.ID,
			req:     ForecastRequest{Mode: "guess"},
			check: func(err error) bool {
				var re *RequestError
				return errors.As(err, &re) && re.Field == "mode"
			},
		},
		{
			name:    "bad window",
			session: sess.ID,
			req:     ForecastRequest{OptimalityWindow: "tomorrow"},
			check: func(err error) bool {
				var re *RequestError
				return errors.As(err, &re) && re.Field == "optimality_window"
			},
		},
		{
			name:    "single day of history",
			session: oneDay.ID,
			req:     ForecastRequest{Periods: intPtr(5)},
			check: func(err error) bool {
				var ie *forecast.InsufficientDataError
				return errors.As(err, &ie)
			},
		},
		{
			name:    "pretrained without artifact",
			session: sess.ID,
			req:     ForecastRequest{Mode: ModePretrained},
			check: func(err error) bool {
				var le *forecast.ModelLoadError
				return errors.As(err, &le)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Forecast(context.Background(), tt.session, tt.req)
			if err == nil || !tt.check(err) {
				t.Errorf("Forecast() error = %v", err)
			}
		})
	}
}

type eventLog struct {
	mu     sync.Mutex
	events []*ProgressEvent
}

func (l *eventLog) record(_ context.Context, e plugin.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e.Payload.(*ProgressEvent))
}

func (l *eventLog) snapshot() []*ProgressEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*ProgressEvent(nil), l.events...)
}

func TestForecast_PublishesProgress(t *testing.T) {
	t.Parallel()

	bus := event.NewBus(zap.NewNop())
	log := &eventLog{}
	bus.Subscribe(TopicPipelineProgress, log.record)

	m := newTestModule(t, bus)
	sess := mustIngest(t, m, growthCSV(10, 0.25))
	if _, err := m.Forecast(context.Background(), sess.ID, ForecastRequest{Periods: intPtr(5)}); err != nil {
		t.Fatalf("Forecast: %v", err)
	}

	events := log.snapshot()
	want := []struct {
		stage  Stage
		status string
	}{
		{StageFit, StatusStarted}, {StageFit, StatusCompleted},
		{StageHorizon, StatusStarted}, {StageHorizon, StatusCompleted},
		{StagePredict, StatusStarted}, {StagePredict, StatusCompleted},
		{StageAnalyze, StatusStarted}, {StageAnalyze, StatusCompleted},
		{StageDone, StatusCompleted},
	}
	if len(events) != len(want) {
		t.Fatalf("got %d events, want %d", len(events), len(want))
	}
	for i, w := range want {
		e := events[i]
		if e.Stage != w.stage || e.Status != w.status || e.SessionID != sess.ID {
			t.Errorf("event %d = %+v, want %s/%s", i, e, w.stage, w.status)
		}
	}
	if last := events[len(events)-1]; last.Step != last.Total || last.Total != 5 {
		t.Errorf("final step = %d/%d, want 5/5", last.Step, last.Total)
	}
}

func TestForecast_PublishesFailure(t *testing.T) {
	t.Parallel()

	bus := event.NewBus(zap.NewNop())
	log := &eventLog{}
	bus.Subscribe(TopicPipelineProgress, log.record)

	m := newTestModule(t, bus)
	sess := mustIngest(t, m, growthCSV(1, 0.25))
	if _, err := m.Forecast(context.Background(), sess.ID, ForecastRequest{Periods: intPtr(5)}); err == nil {
		t.Fatal("Forecast() succeeded on a single day of history")
	}

	events := log.snapshot()
	if len(events) != 2 {
		t.Fatalf("got %d events, want started and failed", len(events))
	}
	if e := events[1]; e.Stage != StageFit || e.Status != StatusFailed || e.Error == "" {
		t.Errorf("failure event = %+v", e)
	}
}

func writeSample(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "sample.csv")
	if err := os.WriteFile(path, []byte(growthCSV(12, 0.3)), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestForecastSample(t *testing.T) {
	t.Parallel()

	bus := event.NewBus(zap.NewNop())
	log := &eventLog{}
	bus.Subscribe(TopicPipelineProgress, log.record)

	m := newTestModule(t, bus)
	m.cfg.SampleData = writeSample(t, t.TempDir())

	res, err := m.ForecastSample(context.Background(), ForecastRequest{Periods: intPtr(6)})
	if err != nil {
		t.Fatalf("ForecastSample: %v", err)
	}
	if !m.HasSession(res.SessionID) {
		t.Error("sample run did not create a session")
	}
	events := log.snapshot()
	if len(events) == 0 {
		t.Fatal("no progress events")
	}
	if first := events[0]; first.Stage != StageNormalize || first.SessionID != res.SessionID {
		t.Fatalf("first event = %+v, want normalize for %s", first, res.SessionID)
	}
	if last := events[len(events)-1]; last.Stage != StageDone || last.Total != 6 {
		t.Errorf("last event = %+v", last)
	}
}

func TestForecastSample_ReusesSampleSession(t *testing.T) {
	t.Parallel()

	m := newTestModule(t, nil)
	m.cfg.SampleData = writeSample(t, t.TempDir())
	m.sessions = newSessionStore(2)

	if !m.HasSession(SampleSessionID) {
		t.Error("sample session should be streamable before the first run")
	}
	upload := mustIngest(t, m, growthCSV(8, 0.2))
	for i := 0; i < 3; i++ {
		res, err := m.ForecastSample(context.Background(), ForecastRequest{Periods: intPtr(5)})
		if err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
		if res.SessionID != SampleSessionID {
			t.Errorf("run %d session = %q, want %q", i, res.SessionID, SampleSessionID)
		}
	}
	if !m.HasSession(upload.ID) {
		t.Error("repeated sample runs evicted the upload session")
	}
	if n := m.sessions.Len(); n != 2 {
		t.Errorf("sessions = %d, want 2", n)
	}
}

func TestForecastSample_Unavailable(t *testing.T) {
	t.Parallel()

	m := newTestModule(t, nil)
	if _, err := m.ForecastSample(context.Background(), ForecastRequest{}); !errors.Is(err, ErrSampleUnavailable) {
		t.Errorf("unconfigured: error = %v, want ErrSampleUnavailable", err)
	}

	m.cfg.SampleData = filepath.Join(t.TempDir(), "absent.csv")
	if _, err := m.ForecastSample(context.Background(), ForecastRequest{}); !errors.Is(err, ErrSampleUnavailable) {
		t.Errorf("missing file: error = %v, want ErrSampleUnavailable", err)
	}
}

func TestForecast_PretrainedBootstrap(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	m := newTestModule(t, nil)
	m.cfg.SampleData = writeSample(t, dir)
	m.cfg.PretrainedModel = filepath.Join(dir, "models", "forecast.json")

	sess := mustIngest(t, m, growthCSV(10, 0.25))
	res, err := m.Forecast(context.Background(), sess.ID, ForecastRequest{Mode: ModePretrained, Periods: intPtr(5)})
	if err != nil {
		t.Fatalf("Forecast: %v", err)
	}
	if res.Mode != ModePretrained || len(res.Forecast) != 5 {
		t.Errorf("mode = %q, rows = %d", res.Mode, len(res.Forecast))
	}
	if _, err := os.Stat(m.cfg.PretrainedModel); err != nil {
		t.Errorf("bootstrapped artifact not saved: %v", err)
	}

	// A second module reads the saved artifact without a sample.
	other := newTestModule(t, nil)
	other.cfg.PretrainedModel = m.cfg.PretrainedModel
	other.cfg.BootstrapPretrained = false
	sess = mustIngest(t, other, growthCSV(10, 0.25))
	if _, err := other.Forecast(context.Background(), sess.ID, ForecastRequest{Mode: ModePretrained, Periods: intPtr(5)}); err != nil {
		t.Fatalf("Forecast with saved artifact: %v", err)
	}
	if h := other.Health(context.Background()); h.Details["pretrained_loaded"] != "true" {
		t.Errorf("health details = %v", h.Details)
	}
}

func TestForecast_PretrainedWithoutBootstrap(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	m := newTestModule(t, nil)
	m.cfg.SampleData = writeSample(t, dir)
	m.cfg.PretrainedModel = filepath.Join(dir, "absent.json")
	m.cfg.BootstrapPretrained = false

	sess := mustIngest(t, m, growthCSV(10, 0.25))
	_, err := m.Forecast(context.Background(), sess.ID, ForecastRequest{Mode: ModePretrained})
	var le *forecast.ModelLoadError
	if !errors.As(err, &le) {
		t.Fatalf("error = %v, want *forecast.ModelLoadError", err)
	}
}

func TestForecastConfig_LogisticDefaultsToLargestCap(t *testing.T) {
	t.Parallel()

	m := newTestModule(t, nil)
	m.cfg.Forecast.Growth = forecast.GrowthLogistic
	m.cfg.CapTable = horizon.CapTable{50: 10, 150: 22, 100: 18}

	if got := m.forecastConfig(nil).Cap; got != 22 {
		t.Errorf("cap without request = %v, want 22", got)
	}
	c := 9.0
	if got := m.forecastConfig(&c).Cap; got != 9 {
		t.Errorf("cap with request = %v, want 9", got)
	}
}

func TestValidateConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "logistic without cap", mutate: func(c *Config) { c.Forecast.Growth = forecast.GrowthLogistic }},
		{name: "bad anchor", mutate: func(c *Config) { c.Anchor = "July" }, wantErr: true},
		{name: "zero max day", mutate: func(c *Config) { c.MaxDay = 0 }, wantErr: true},
		{name: "inverted horizon", mutate: func(c *Config) { c.Horizon = horizon.Policy{Min: 10, Max: 5} }, wantErr: true},
		{name: "zero ttl", mutate: func(c *Config) { c.SessionTTL = 0 }, wantErr: true},
		{name: "unknown growth", mutate: func(c *Config) { c.Forecast.Growth = "cubic" }, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMaintenance_ReapsIdleSessions(t *testing.T) {
	t.Parallel()

	m := newTestModule(t, nil)
	now := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)
	m.sessions.now = func() time.Time { return now }

	stale := mustIngest(t, m, growthCSV(3, 0.25))
	now = now.Add(m.cfg.SessionTTL)
	fresh := mustIngest(t, m, growthCSV(3, 0.25))
	now = now.Add(time.Minute)

	m.runMaintenance()
	if m.HasSession(stale.ID) {
		t.Error("stale session survived maintenance")
	}
	if !m.HasSession(fresh.ID) {
		t.Error("fresh session was reaped")
	}
}

func TestStartStop(t *testing.T) {
	t.Parallel()

	m := newTestModule(t, nil)
	m.cfg.MaintenanceInterval = time.Millisecond
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if err := m.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}
