// Package server serves the built-in HTML page used to exercise the chat
// service from a browser.
package server

import (
	"fmt"
	"log"
	"net/http"
)

// TestPageHandler serves an HTML test page for trying out room chat. It
// logs in with form credentials, joins the chosen room over WebSocket, and
// shows broadcast traffic as it arrives.
func TestPageHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	html := `<!DOCTYPE html>
<html>
<head>
    <title>Roomchat Test</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        #messages {
            border: 1px solid #ccc;
            height: 300px;
            padding: 10px;
            overflow-y: scroll;
            margin: 10px 0;
            background-color: #f9f9f9;
        }
        input[type="text"], input[type="password"] { padding: 5px; margin-right: 5px; }
        button {
            padding: 5px 15px;
            background-color: #007cba;
            color: white;
            border: none;
            cursor: pointer;
        }
        button:hover { background-color: #005a87; }
    </style>
</head>
<body>
    <h1>Roomchat Test</h1>

    <div>
        <input type="text" id="username" placeholder="Username">
        <input type="password" id="password" placeholder="Password">
        <input type="text" id="room" placeholder="Room" value="lobby">
        <button onclick="join()">Join</button>
    </div>

    <div>
        <input type="text" id="messageInput" placeholder="Type a message..." disabled>
        <button id="sendButton" onclick="sendMessage()" disabled>Send</button>
    </div>

    <div id="messages"></div>

    <script>
        let ws = null;
        const messagesDiv = document.getElementById('messages');
        const messageInput = document.getElementById('messageInput');
        const sendButton = document.getElementById('sendButton');

        function addMessage(message) {
            const el = document.createElement('div');
            el.textContent = message;
            messagesDiv.appendChild(el);
            messagesDiv.scrollTop = messagesDiv.scrollHeight;
        }

        async function join() {
            const body = new URLSearchParams({
                username: document.getElementById('username').value,
                password: document.getElementById('password').value,
            });
            const resp = await fetch('/auth/login', { method: 'POST', body: body });
            if (!resp.ok) {
                addMessage('Login failed');
                return;
            }

            const room = document.getElementById('room').value;
            const scheme = location.protocol === 'https:' ? 'wss' : 'ws';
            ws = new WebSocket(scheme + '://' + location.host + '/ws/' + encodeURIComponent(room));
            ws.onopen = function() {
                messageInput.disabled = false;
                sendButton.disabled = false;
            };
            ws.onmessage = function(event) { addMessage(event.data); };
            ws.onclose = function() {
                addMessage('Connection closed');
                messageInput.disabled = true;
                sendButton.disabled = true;
                ws = null;
            };
        }

        function sendMessage() {
            const message = messageInput.value.trim();
            if (message && ws && ws.readyState === WebSocket.OPEN) {
                ws.send(message);
                addMessage('You: ' + message);
                messageInput.value = '';
            }
        }

        messageInput.addEventListener('keypress', function(e) {
            if (e.key === 'Enter') {
                sendMessage();
            }
        });
    </script>
</body>
</html>`
	if _, err := fmt.Fprint(w, html); err != nil {
		log.Printf("Error writing HTML response: %v", err)
	}
}
