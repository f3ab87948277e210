package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/chargepal/fleetctl/pkg/controller"
	"github.com/chargepal/fleetctl/pkg/log"
	"github.com/chargepal/fleetctl/pkg/metrics"
	"github.com/chargepal/fleetctl/pkg/planstore"
	"github.com/chargepal/fleetctl/pkg/types"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Server is the RPC façade in front of a Controller.
type Server struct {
	ctrl     *controller.Controller
	router   *mux.Router
	upgrader websocket.Upgrader
	logger   zerolog.Logger
}

// NewServer builds the RPC façade's router over ctrl.
func NewServer(ctrl *controller.Controller) *Server {
	s := &Server{
		ctrl:   ctrl,
		router: mux.NewRouter(),
		logger: log.WithComponent("api"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Use(s.instrument)

	s.router.HandleFunc("/v1/jobs/fetch", s.fetchJob).Methods(http.MethodPost)
	s.router.HandleFunc("/v1/jobs/monitor", s.updateJobMonitor).Methods(http.MethodPost)
	s.router.HandleFunc("/v1/stations/free", s.askFreeStation).Methods(http.MethodPost)
	s.router.HandleFunc("/v1/stations/reset", s.resetStationBlocker).Methods(http.MethodPost)
	s.router.HandleFunc("/v1/plugin/ready", s.ready2PlugInADS).Methods(http.MethodPost)
	s.router.HandleFunc("/v1/battery/communication", s.batteryCommunication).Methods(http.MethodPost)
	s.router.HandleFunc("/v1/ldb/push", s.pushToLDB).Methods(http.MethodPost)
	s.router.HandleFunc("/v1/ldb/operation-time", s.operationTime).Methods(http.MethodGet)
	s.router.HandleFunc("/v1/rdb", s.updateRDB).Methods(http.MethodGet)
	s.router.HandleFunc("/v1/ldb/pull", s.pullLDB).Methods(http.MethodGet)
	s.router.HandleFunc("/v1/log", s.logText).Methods(http.MethodPost)
	s.router.HandleFunc("/v1/events", s.streamEvents).Methods(http.MethodGet)

	s.router.HandleFunc("/health", HealthHandler(s.ctrl)).Methods(http.MethodGet)
	s.router.HandleFunc("/ready", ReadyHandler(s.ctrl)).Methods(http.MethodGet)
	s.router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
}

// Start runs the HTTP server on addr until ctx is canceled.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// instrument records RPCRequestsTotal/RPCRequestDuration for every route.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		timer := metrics.NewTimer()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		route := r.URL.Path
		metrics.RPCRequestsTotal.WithLabelValues(route, fmt.Sprintf("%d", rec.status)).Inc()
		timer.ObserveDurationVec(metrics.RPCRequestDuration, route)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decode is lenient by design: spec.md §7 says an RPC for an unknown
// or malformed entity returns a negative/empty response rather than
// raising, so a bad body yields zero-valued fields, not a 4xx.
func decode(r *http.Request, v any) {
	_ = json.NewDecoder(r.Body).Decode(v)
}

// --- FetchJob ---

type fetchJobRequest struct {
	RobotName string `json:"robot_name"`
}

type fetchJobResponse struct {
	JobID         int64  `json:"job_id"`
	JobType       string `json:"job_type"`
	ChargingType  string `json:"charging_type"`
	RobotName     string `json:"robot_name"`
	Cart          string `json:"cart"`
	SourceStation string `json:"source_station"`
	TargetStation string `json:"target_station"`
}

func (s *Server) fetchJob(w http.ResponseWriter, r *http.Request) {
	var req fetchJobRequest
	decode(r, &req)

	var resp fetchJobResponse
	err := s.ctrl.PlanStore().View(func(tx *planstore.Tx) error {
		robot, err := tx.GetRobot(req.RobotName)
		if err != nil || robot.CurrentJobID == 0 {
			return nil
		}
		job, err := tx.GetJob(robot.CurrentJobID)
		if err != nil {
			return nil
		}
		resp = fetchJobResponse{
			JobID:         job.ID,
			JobType:       string(job.Type),
			ChargingType:  job.ChargingType,
			RobotName:     job.RobotName,
			Cart:          job.CartName,
			SourceStation: job.SourceStation,
			TargetStation: job.TargetStation,
		}
		return nil
	})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	s.ctrl.Enqueue(func(tx *planstore.Tx) error {
		_, err := s.ctrl.FSM().FetchJob(tx, req.RobotName)
		return err
	})

	writeJSON(w, http.StatusOK, resp)
}

// --- UpdateJobMonitor ---

type updateJobMonitorRequest struct {
	RobotName string `json:"robot_name"`
	JobName   string `json:"job_name"`
	JobStatus string `json:"job_status"`
}

type updateJobMonitorResponse struct {
	Success bool `json:"success"`
}

func (s *Server) updateJobMonitor(w http.ResponseWriter, r *http.Request) {
	var req updateJobMonitorRequest
	decode(r, &req)

	s.ctrl.Enqueue(func(tx *planstore.Tx) error {
		_, err := s.ctrl.FSM().HandleRobotJobUpdate(tx, req.RobotName, types.RobotJobStatus(req.JobStatus))
		return err
	})

	// The FSM dispatch is asynchronous (spec.md §5: mutation only via
	// RequestQueue), so success here only confirms the update was
	// accepted for processing on the next tick, not that it applied.
	writeJSON(w, http.StatusOK, updateJobMonitorResponse{Success: true})
}

// --- AskFreeStation ---

type askFreeStationRequest struct {
	RobotName   string `json:"robot_name"`
	RequestName string `json:"request_name"`
}

type askFreeStationResponse struct {
	StationName string `json:"station_name"`
}

func (s *Server) askFreeStation(w http.ResponseWriter, r *http.Request) {
	var req askFreeStationRequest
	decode(r, &req)

	prefix, ok := prefixForAskFree(req.RequestName)
	if !ok {
		writeJSON(w, http.StatusOK, askFreeStationResponse{})
		return
	}

	var station string
	err := s.ctrl.PlanStore().View(func(tx *planstore.Tx) error {
		name, err := s.ctrl.Picker().SearchFreeStation(tx, req.RobotName, prefix)
		if err != nil {
			return err
		}
		station = name
		return nil
	})
	if err != nil {
		metrics.StationPickerExhaustionsTotal.WithLabelValues(string(prefix)).Inc()
		writeJSON(w, http.StatusOK, askFreeStationResponse{})
		return
	}
	if station == "" {
		metrics.StationPickerExhaustionsTotal.WithLabelValues(string(prefix)).Inc()
	}

	writeJSON(w, http.StatusOK, askFreeStationResponse{StationName: station})
}

func prefixForAskFree(requestName string) (types.StationPrefix, bool) {
	switch requestName {
	case "ask_free_bcs":
		return types.PrefixBCS, true
	case "ask_free_bws":
		return types.PrefixBWS, true
	default:
		return "", false
	}
}

// --- ResetStationBlocker ---

type resetStationBlockerRequest struct {
	RobotName   string `json:"robot_name"`
	RequestName string `json:"request_name"`
}

type resetStationBlockerResponse struct {
	Success bool `json:"success"`
}

func (s *Server) resetStationBlocker(w http.ResponseWriter, r *http.Request) {
	var req resetStationBlockerRequest
	decode(r, &req)

	prefix, ok := prefixForReset(req.RequestName)
	if !ok {
		writeJSON(w, http.StatusOK, resetStationBlockerResponse{Success: false})
		return
	}

	s.ctrl.Picker().ResetBlockers(req.RobotName, prefix)
	writeJSON(w, http.StatusOK, resetStationBlockerResponse{Success: true})
}

func prefixForReset(requestName string) (types.StationPrefix, bool) {
	switch requestName {
	case "reset_bcs_blocker":
		return types.PrefixBCS, true
	case "reset_bws_blocker":
		return types.PrefixBWS, true
	default:
		return "", false
	}
}

// --- Ready2PlugInADS ---

type ready2PlugInADSRequest struct {
	RobotName string `json:"robot_name"`
}

type ready2PlugInADSResponse struct {
	ReadyToPlugin bool `json:"ready_to_plugin"`
}

func (s *Server) ready2PlugInADS(w http.ResponseWriter, r *http.Request) {
	var req ready2PlugInADSRequest
	decode(r, &req)

	tx, err := s.ctrl.PlanStore().Begin()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	ready, err := s.ctrl.FSM().HandlePlugInHandshake(tx, req.RobotName)
	if err != nil {
		tx.Rollback()
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if err := tx.Commit(); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, ready2PlugInADSResponse{ReadyToPlugin: ready})
}

// --- BatteryCommunication ---

type batteryCommunicationRequest struct {
	CartName    string `json:"cart_name"`
	StationName string `json:"station_name"`
	RequestName string `json:"request_name"`
}

type batteryCommunicationResponse struct {
	Success bool `json:"success"`
}

// BatteryCommunication dispatches to the battery command protocol
// handler. The wire protocol itself is out of scope; this records the
// request as the cart's battery state in LiveStore so the next
// BatteryMonitor poll can react to it.
func (s *Server) batteryCommunication(w http.ResponseWriter, r *http.Request) {
	var req batteryCommunicationRequest
	decode(r, &req)

	if req.CartName == "" {
		writeJSON(w, http.StatusOK, batteryCommunicationResponse{Success: false})
		return
	}
	if err := s.ctrl.LiveStore().UpdateBattery(req.CartName, req.RequestName); err != nil {
		s.logger.Warn().Err(err).Str("cart", req.CartName).Msg("battery communication failed")
		writeJSON(w, http.StatusOK, batteryCommunicationResponse{Success: false})
		return
	}

	writeJSON(w, http.StatusOK, batteryCommunicationResponse{Success: true})
}

// --- PushToLDB / OperationTime / UpdateRDB / PullLDB / LogText ---

type pushToLDBRequest struct {
	RobotName string `json:"robot_name"`
	Location  string `json:"location"`
	CartName  string `json:"cart_name"`
}

func (s *Server) pushToLDB(w http.ResponseWriter, r *http.Request) {
	var req pushToLDBRequest
	decode(r, &req)

	if req.RobotName == "" {
		writeJSON(w, http.StatusOK, map[string]bool{"success": false})
		return
	}
	if err := s.ctrl.LiveStore().UpdateLocation(req.RobotName, req.Location, req.CartName); err != nil {
		s.logger.Warn().Err(err).Str("robot", req.RobotName).Msg("push to livestore failed")
		writeJSON(w, http.StatusOK, map[string]bool{"success": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type operationTimeResponse struct {
	CartName       string  `json:"cart_name"`
	SecondsElapsed float64 `json:"seconds_elapsed"`
	Plugged        bool    `json:"plugged"`
}

func (s *Server) operationTime(w http.ResponseWriter, r *http.Request) {
	cart := r.URL.Query().Get("cart_name")

	var resp operationTimeResponse
	resp.CartName = cart
	_ = s.ctrl.PlanStore().View(func(tx *planstore.Tx) error {
		c, err := tx.GetCart(cart)
		if err != nil {
			return nil
		}
		resp.Plugged = c.Plugged
		if c.BookingID == 0 {
			return nil
		}
		b, err := tx.GetBooking(c.BookingID)
		if err != nil || b.ActualDropTime == nil {
			return nil
		}
		resp.SecondsElapsed = time.Since(*b.ActualDropTime).Seconds()
		return nil
	})

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) updateRDB(w http.ResponseWriter, r *http.Request) {
	robots, err := s.ctrl.LiveStore().FetchRobots()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	carts, err := s.ctrl.LiveStore().FetchCarts()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	bookings, err := s.ctrl.LiveStore().FetchUpdatedBookings(time.Time{})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"robot_info": robots,
		"cart_info":  carts,
		"orders_in":  bookings,
	})
}

func (s *Server) pullLDB(w http.ResponseWriter, r *http.Request) {
	data, err := s.ctrl.LiveStore().DumpFile()
	if err != nil {
		writeJSON(w, http.StatusNotImplemented, map[string]string{"error": err.Error()})
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

type logTextRequest struct {
	RobotName string `json:"robot_name"`
	Text      string `json:"log_text"`
}

func (s *Server) logText(w http.ResponseWriter, r *http.Request) {
	var req logTextRequest
	decode(r, &req)
	s.logger.Info().Str("robot", req.RobotName).Str("text", req.Text).Msg("robot log")
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// --- events websocket ---

func (s *Server) streamEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	sub := s.ctrl.Events().Subscribe()
	defer s.ctrl.Events().Unsubscribe(sub)

	for ev := range sub {
		if err := conn.WriteJSON(ev); err != nil {
			return
		}
	}
}
