package router

import (
	"net/http"
	"strings"

	"webchat/internal/api"
	"webchat/internal/api/endpoints"
)

// ChatRoutes registers the bootstrap endpoints and the realtime upgrade.
func ChatRoutes(prefix string) api.RouteRegistrar {
	return func(mux *http.ServeMux, s *api.APIServer) {
		base := strings.TrimRight(prefix, "/")
		paths := endpoints.ChatPaths{
			FindPrefix:  base + "/buscar_chat/",
			ClosePrefix: base + "/fechar_chat/",
		}

		var ws http.Handler
		if h := s.Websocket(); h != nil {
			ws = h
		}
		chatEndpoints := endpoints.NewChatEndpoints(s.Chats(), ws, paths)

		mux.HandleFunc(base+"/iniciar_chat", s.MakeHTTPHandleFunc(chatEndpoints.StartChat))
		mux.HandleFunc(paths.FindPrefix, s.MakeHTTPHandleFunc(chatEndpoints.FindChat))
		mux.HandleFunc(base+"/chats_abertos", s.MakeHTTPHandleFunc(chatEndpoints.OpenChats))
		mux.HandleFunc(paths.ClosePrefix, s.MakeHTTPHandleFunc(chatEndpoints.CloseChat))
		mux.HandleFunc(base+"/ws", s.MakeHTTPHandleFunc(chatEndpoints.Websocket))
	}
}
