/*
 Licensed under the Apache License, Version 2.0 (the "License");
 you may not use this file except in compliance with the License.
 You may obtain a copy of the License at

     https://www.apache.org/licenses/LICENSE-2.0

 Unless required by applicable law or agreed to in writing, software
 distributed under the License is distributed on an "AS IS" BASIS,
 WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 See the License for the specific language governing permissions and
 limitations under the License.
*/

// go-cyton API
//
// # RESTful APIs to interact with go-cyton server
//
// Terms Of Service:
//
// Schemes: http
// Host: localhost:8000
// Version: 1.0.0
// Contact:
//
//	Consumes:
//	- application/json
//
//	Produces:
//	- application/json
//
// swagger:meta
package control

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-openapi/loads"
	"github.com/go-openapi/runtime/middleware"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"jinr.ru/greenlab/go-cyton/pkg/config"
	"jinr.ru/greenlab/go-cyton/pkg/cyton"
	"jinr.ru/greenlab/go-cyton/pkg/layers"
	"jinr.ru/greenlab/go-cyton/pkg/log"
	"jinr.ru/greenlab/go-cyton/pkg/srv/control/ifc"
)

//go:embed swagger.json
var swaggerSpec []byte

// Success response
// swagger:response okResp
type RespOk struct {
	// in:body
	Body struct {
		// HTTP status code 200 - OK
		Code int `json:"code"`
	}
}

// Error Bad Request
// swagger:response badReq
type ReqBadRequest struct {
	// in:body
	Body struct {
		// HTTP status code 400 -  Bad Request
		Code int `json:"code"`
	}
}

type Status struct {
	Code int `json:"code"`
}

type Info struct {
	Connected  bool            `json:"connected"`
	Streaming  bool            `json:"streaming"`
	BadPackets int             `json:"badPackets"`
	Board      cyton.BoardInfo `json:"board"`
}

type ImpedanceSetup struct {
	PInput bool `json:"pInput"`
	NInput bool `json:"nInput"`
}

type TextReply struct {
	Text string `json:"text"`
}

type RadioValue struct {
	Value int `json:"value"`
}

type RadioStatus struct {
	Up bool `json:"up"`
}

type ApiServer struct {
	context.Context
	*config.Config
	*mux.Router
	ctrl ifc.ControlServer
	spec *loads.Document
}

var _ ifc.ApiServer = &ApiServer{}

func NewApiServer(ctx context.Context, cfg *config.Config, ctrl ifc.ControlServer) (*ApiServer, error) {
	log.Info("Initializing API server with address: %s port: %d", cfg.Api.Address, cfg.Api.Port)

	spec, err := loads.Analyzed(swaggerSpec, "")
	if err != nil {
		return nil, fmt.Errorf("load API spec: %w", err)
	}
	s := &ApiServer{
		Context: ctx,
		Config:  cfg,
		ctrl:    ctrl,
		spec:    spec,
	}
	s.configureRouter()
	return s, nil
}

// Handler wraps the router with access logging and panic recovery
func (s *ApiServer) Handler() http.Handler {
	logger := log.StdLogger()
	recovery := handlers.RecoveryHandler(handlers.RecoveryLogger(logger), handlers.PrintRecoveryStack(true))
	return recovery(handlers.LoggingHandler(logger.Writer(), s.Router))
}

// Start
func (s *ApiServer) Run() error {
	addr := fmt.Sprintf("%s:%d", s.Config.Api.Address, s.Config.Api.Port)
	log.Info("Starting API server: address: %s api version: %s", addr, s.spec.Spec().Info.Version)
	httpServer := &http.Server{
		Handler: s.Handler(),
		Addr:    addr,
	}
	go func() {
		<-s.Context.Done()
		httpServer.Shutdown(context.Background())
	}()
	err := httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *ApiServer) configureRouter() {
	s.Router = mux.NewRouter()
	subRouter := s.Router.PathPrefix("/api").Subrouter()
	// swagger:operation GET /info info
	// ---
	// summary: board info and connection state
	// responses:
	//   "200":
	//     "$ref": "#/responses/okResp"
	subRouter.HandleFunc("/info", s.handleInfo()).Methods("GET")
	subRouter.HandleFunc("/{action:connect|disconnect}", s.handleConnection()).Methods("GET")
	// swagger:operation GET /stream/{action} stream
	// ---
	// summary: start/stop streaming
	// responses:
	//   "200":
	//     "$ref": "#/responses/okResp"
	//   "400":
	//     "$ref": "#/responses/badReq"
	subRouter.HandleFunc("/stream/{action:start|stop}", s.handleStream()).Methods("GET")
	subRouter.HandleFunc("/reset", s.handleReset()).Methods("GET")
	subRouter.HandleFunc("/defaults", s.handleDefaults()).Methods("GET")
	// swagger:operation POST /sync sync
	// ---
	// summary: run one clock sync round and return its result
	// responses:
	//   "200":
	//     "$ref": "#/responses/okResp"
	subRouter.HandleFunc("/sync", s.handleSync()).Methods("POST")
	subRouter.HandleFunc("/sync", s.handleLastSync()).Methods("GET")
	subRouter.HandleFunc("/channel/{n:[0-9]+}/{action:on|off}", s.handleChannelPower()).Methods("GET")
	subRouter.HandleFunc("/channel/{n:[0-9]+}/settings", s.handleChannelSettingsGet()).Methods("GET")
	subRouter.HandleFunc("/channel/{n:[0-9]+}/settings", s.handleChannelSettings()).Methods("POST")
	subRouter.HandleFunc("/impedance/{n:[0-9]+}", s.handleImpedance()).Methods("POST")
	subRouter.HandleFunc("/test_signal/{name}", s.handleTestSignal()).Methods("GET")
	subRouter.HandleFunc("/sd/start/{duration}", s.handleSDStart()).Methods("GET")
	subRouter.HandleFunc("/sd/stop", s.handleSDStop()).Methods("GET")
	subRouter.HandleFunc("/board_type/{type}", s.handleBoardType()).Methods("GET")
	subRouter.HandleFunc("/registers", s.handleRegisters()).Methods("GET")
	subRouter.HandleFunc("/radio/status", s.handleRadioStatus()).Methods("GET")
	subRouter.HandleFunc("/radio/channel", s.handleRadioChannelGet()).Methods("GET")
	subRouter.HandleFunc("/radio/channel/{n:[0-9]+}", s.handleRadioChannelSet()).Methods("POST")
	subRouter.HandleFunc("/radio/poll_time", s.handleRadioPollTimeGet()).Methods("GET")
	subRouter.HandleFunc("/radio/poll_time/{n:[0-9]+}", s.handleRadioPollTimeSet()).Methods("POST")
	subRouter.HandleFunc("/radio/baud/{rate:default|fast}", s.handleRadioBaud()).Methods("POST")
	subRouter.Handle("/samples", s.ctrl.Samples()).Methods("GET")

	s.Router.Handle("/metrics", s.ctrl.Metrics()).Methods("GET")
	s.Router.HandleFunc("/swagger.json", s.handleSwagger()).Methods("GET")
	s.Router.PathPrefix("/docs").Handler(middleware.Redoc(middleware.RedocOpts{
		BasePath: "/",
		Path:     "docs",
		SpecURL:  "/swagger.json",
		Title:    "go-cyton API",
	}, http.NotFoundHandler())).Methods("GET")
}

// errorStatus maps board errors to HTTP status codes
func errorStatus(err error) int {
	switch {
	case errors.As(err, &layers.ErrInvalidArgument{}),
		errors.As(err, &layers.ErrInvalidChannel{}),
		errors.As(err, &cyton.ErrInvalidBoardType{}),
		errors.As(err, &cyton.ErrInvalidSDDuration{}),
		errors.As(err, &cyton.ErrInvalidTestSignal{}),
		errors.As(err, &ErrUnknownOperation{}):
		return http.StatusBadRequest
	case errors.As(err, &cyton.ErrNotConnected{}),
		errors.As(err, &cyton.ErrAlreadyConnected{}),
		errors.As(err, &cyton.ErrAlreadyDisconnected{}),
		errors.As(err, &cyton.ErrAlreadyStreaming{}),
		errors.As(err, &cyton.ErrNotStreaming{}),
		errors.As(err, &cyton.ErrSyncInFlight{}),
		errors.As(err, &cyton.ErrFirmware{}):
		return http.StatusConflict
	case errors.As(err, &cyton.ErrTimeout{}),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusBadGateway
}

func fail(w http.ResponseWriter, err error) {
	log.Debug("Request failed: %s", err)
	http.Error(w, err.Error(), errorStatus(err))
}

func respond(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("Unable to encode response: %s", err)
	}
}

func ok(w http.ResponseWriter) {
	respond(w, &Status{Code: http.StatusOK})
}

func channelVar(r *http.Request) (int, error) {
	n, err := strconv.Atoi(mux.Vars(r)["n"])
	if err != nil {
		return 0, layers.ErrInvalidArgument{What: err.Error()}
	}
	return n, nil
}

func (s *ApiServer) handleInfo() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		board := s.ctrl.Board()
		respond(w, &Info{
			Connected:  board.IsConnected(),
			Streaming:  board.IsStreaming(),
			BadPackets: board.BadPackets(),
			Board:      board.Info(),
		})
	}
}

func (s *ApiServer) handleConnection() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		action := mux.Vars(r)["action"]
		log.Debug("Handling connection request: action: %s", action)
		var err error
		switch action {
		case "connect":
			err = s.ctrl.Connect(r.Context())
		case "disconnect":
			err = s.ctrl.Board().Disconnect(r.Context())
		default:
			err = ErrUnknownOperation{What: "Wrong connection action. Must be one of connect/disconnect"}
		}
		if err != nil {
			fail(w, err)
			return
		}
		ok(w)
	}
}

func (s *ApiServer) handleStream() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		action := mux.Vars(r)["action"]
		log.Debug("Handling stream request: action: %s", action)
		var err error
		switch action {
		case "start":
			err = s.ctrl.Board().StreamStart(r.Context())
		case "stop":
			err = s.ctrl.Board().StreamStop(r.Context())
		default:
			err = ErrUnknownOperation{What: "Wrong stream action. Must be one of start/stop"}
		}
		if err != nil {
			fail(w, err)
			return
		}
		ok(w)
	}
}

func (s *ApiServer) handleReset() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.ctrl.Board().SoftReset(r.Context()); err != nil {
			fail(w, err)
			return
		}
		ok(w)
	}
}

func (s *ApiServer) handleDefaults() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.ctrl.Defaults(r.Context()); err != nil {
			fail(w, err)
			return
		}
		ok(w)
	}
}

func (s *ApiServer) handleSync() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		obj, err := s.ctrl.SyncClocks(r.Context())
		if err != nil {
			fail(w, err)
			return
		}
		respond(w, obj)
	}
}

func (s *ApiServer) handleLastSync() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		obj, err := s.ctrl.LastSync()
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		respond(w, obj)
	}
}

func (s *ApiServer) handleChannelPower() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := channelVar(r)
		if err != nil {
			fail(w, err)
			return
		}
		if mux.Vars(r)["action"] == "on" {
			err = s.ctrl.Board().ChannelOn(r.Context(), n)
		} else {
			err = s.ctrl.Board().ChannelOff(r.Context(), n)
		}
		if err != nil {
			fail(w, err)
			return
		}
		ok(w)
	}
}

func (s *ApiServer) handleChannelSettingsGet() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := channelVar(r)
		if err != nil {
			fail(w, err)
			return
		}
		settings, err := s.ctrl.ChannelSettings(n)
		if err != nil {
			fail(w, err)
			return
		}
		respond(w, settings)
	}
}

func (s *ApiServer) handleChannelSettings() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := channelVar(r)
		if err != nil {
			fail(w, err)
			return
		}
		settings := layers.DefaultChannelSettings(n)
		if err := json.NewDecoder(r.Body).Decode(settings); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		settings.Channel = n
		log.Debug("Handling channel settings request: channel: %d gain: %d input: %s",
			n, settings.Gain, settings.InputType)
		if err := s.ctrl.ChannelSet(r.Context(), settings); err != nil {
			fail(w, err)
			return
		}
		ok(w)
	}
}

func (s *ApiServer) handleImpedance() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := channelVar(r)
		if err != nil {
			fail(w, err)
			return
		}
		setup := &ImpedanceSetup{}
		if err := json.NewDecoder(r.Body).Decode(setup); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := s.ctrl.Board().ImpedanceSet(r.Context(), n, setup.PInput, setup.NInput); err != nil {
			fail(w, err)
			return
		}
		ok(w)
	}
}

func (s *ApiServer) handleTestSignal() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.ctrl.Board().TestSignal(r.Context(), mux.Vars(r)["name"]); err != nil {
			fail(w, err)
			return
		}
		ok(w)
	}
}

func (s *ApiServer) handleSDStart() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		text, err := s.ctrl.Board().SDStart(r.Context(), mux.Vars(r)["duration"])
		if err != nil {
			fail(w, err)
			return
		}
		respond(w, &TextReply{Text: text})
	}
}

func (s *ApiServer) handleSDStop() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		text, err := s.ctrl.Board().SDStop(r.Context())
		if err != nil {
			fail(w, err)
			return
		}
		respond(w, &TextReply{Text: text})
	}
}

func (s *ApiServer) handleBoardType() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.ctrl.HardSetBoardType(r.Context(), mux.Vars(r)["type"]); err != nil {
			fail(w, err)
			return
		}
		respond(w, s.ctrl.Board().Info())
	}
}

func (s *ApiServer) handleRegisters() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		all, err := s.ctrl.RegisterQuery(r.Context())
		if err != nil {
			fail(w, err)
			return
		}
		respond(w, all)
	}
}

func (s *ApiServer) handleRadioStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		up, err := s.ctrl.Board().RadioSystemStatus(r.Context())
		if err != nil {
			fail(w, err)
			return
		}
		respond(w, &RadioStatus{Up: up})
	}
}

func (s *ApiServer) respondRadio(w http.ResponseWriter, value int, err error) {
	if err != nil {
		fail(w, err)
		return
	}
	respond(w, &RadioValue{Value: value})
}

func (s *ApiServer) handleRadioChannelGet() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		value, err := s.ctrl.Board().RadioChannelGet(r.Context())
		s.respondRadio(w, value, err)
	}
}

// handleRadioChannelSet moves host and device, or only the host with ?override=true
func (s *ApiServer) handleRadioChannelSet() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := channelVar(r)
		if err != nil {
			fail(w, err)
			return
		}
		override, _ := strconv.ParseBool(r.URL.Query().Get("override"))
		var value int
		if override {
			value, err = s.ctrl.Board().RadioChannelSetOverride(r.Context(), n)
		} else {
			value, err = s.ctrl.Board().RadioChannelSet(r.Context(), n)
		}
		s.respondRadio(w, value, err)
	}
}

func (s *ApiServer) handleRadioPollTimeGet() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		value, err := s.ctrl.Board().RadioPollTimeGet(r.Context())
		s.respondRadio(w, value, err)
	}
}

func (s *ApiServer) handleRadioPollTimeSet() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := channelVar(r)
		if err != nil {
			fail(w, err)
			return
		}
		value, err := s.ctrl.Board().RadioPollTimeSet(r.Context(), n)
		s.respondRadio(w, value, err)
	}
}

func (s *ApiServer) handleRadioBaud() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		value, err := s.ctrl.Board().RadioBaudRateSet(r.Context(), mux.Vars(r)["rate"] == "fast")
		s.respondRadio(w, value, err)
	}
}

func (s *ApiServer) handleSwagger() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write(s.spec.Raw())
	}
}
