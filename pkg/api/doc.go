/*
Package api is the RPC façade (spec.md §4.J): a thin HTTP/JSON layer
in front of Controller. Each handler acquires no lock of its own —
reads go through Controller.PlanStore().View for a self-consistent
snapshot. FetchJob and UpdateJobMonitor enqueue their job transitions
through Controller.Enqueue, so they run inside the next tick's
transaction. Ready2PlugInADS runs its handshake in its own PlanStore
transaction, which bbolt's single-writer lock serializes against the
tick. AskFreeStation and ResetStationBlocker call the StationPicker
directly.

Routes (mux.Router, JSON request/response bodies):

	POST /v1/jobs/fetch            FetchJob
	POST /v1/jobs/monitor           UpdateJobMonitor
	POST /v1/stations/free          AskFreeStation
	POST /v1/stations/reset         ResetStationBlocker
	POST /v1/plugin/ready           Ready2PlugInADS
	POST /v1/battery/communication  BatteryCommunication
	POST /v1/ldb/push               PushToLDB
	GET  /v1/ldb/operation-time     OperationTime
	GET  /v1/rdb                    UpdateRDB
	GET  /v1/ldb/pull               PullLDB
	POST /v1/log                    LogText
	GET  /v1/events                 websocket feed of pkg/events.Event
	GET  /health, /ready, /metrics

RPC handlers never return an HTTP 5xx for a domain-level negative
result (spec.md §7: "RPC handlers never raise to the transport; they
return typed negatives"). A 5xx reports a backend failure
(PlanStore/LiveStore I/O errors); PullLDB answers 501 when the
LiveStore backend has no single file to return. Request bodies are
decoded leniently: a malformed body is not rejected, and its fields
keep their zero values.
*/
package api
