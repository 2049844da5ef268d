package server

import (
	"log"
	"net/http"
)

// Handler assembles the API mux: the websocket event stream plus the REST
// surface the mobile client talks to.
func Handler(hub *Hub, chats ChatService, scenarios ScenarioStore, prefs SettingsService, bills BillingService, audioDir string) http.Handler {
	mux := http.NewServeMux()

	registerWSRoute(mux, hub)
	registerAPIRoutes(mux, chats, scenarios, prefs, bills, audioDir)

	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return mux
}

func Serve(addr string, hub *Hub, chats ChatService, scenarios ScenarioStore, prefs SettingsService, bills BillingService, audioDir string) error {
	h := Handler(hub, chats, scenarios, prefs, bills, audioDir)

	log.Printf("api listening on %s", addr)
	return http.ListenAndServe(addr, h)
}
