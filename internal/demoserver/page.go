package demoserver

import "html/template"

type pageData struct {
	ConversationID string
	Endpoint       string
}

var indexTemplate = template.Must(template.New("index").Parse(`<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>convotap demo chat</title>
<style>
  body { font-family: system-ui, sans-serif; max-width: 48rem; margin: 2rem auto; color: #1e1e2e; }
  #log { border: 1px solid #ccc; border-radius: 6px; padding: 1rem; min-height: 12rem; white-space: pre-wrap; }
  .user { color: #1e66f5; } .assistant { color: #40a02b; } .error { color: #d20f39; }
  form { display: flex; gap: .5rem; margin-top: 1rem; } input[type=text] { flex: 1; padding: .4rem; }
</style>
</head>
<body>
<h1>Demo chat</h1>
<p>Conversation <code id="conversation">{{.ConversationID}}</code>. Every message is sent to <code>{{.Endpoint}}</code>.</p>
<div id="log"></div>
<form id="prompt-form" data-endpoint="{{.Endpoint}}">
  <input type="text" id="prompt" placeholder="Send a message" autocomplete="off" required>
  <label><input type="checkbox" id="stream"> stream</label>
  <button type="submit">Send</button>
</form>
<script>
(function () {
  const log = document.getElementById("log");
  const form = document.getElementById("prompt-form");
  const input = document.getElementById("prompt");
  const stream = document.getElementById("stream");
  const conversationId = document.getElementById("conversation").textContent;

  function line(cls, text) {
    const div = document.createElement("div");
    div.className = cls;
    div.textContent = text;
    log.appendChild(div);
    return div;
  }

  form.addEventListener("submit", async function (ev) {
    ev.preventDefault();
    const prompt = input.value;
    input.value = "";
    line("user", "you: " + prompt);

    const body = {
      action: "next",
      conversation_id: conversationId,
      model: "demo",
      messages: [{
        id: crypto.randomUUID(),
        author: { role: "user" },
        content: { content_type: "text", parts: [prompt] }
      }]
    };
    const headers = { "Content-Type": "application/json" };
    if (stream.checked) {
      headers["Accept"] = "text/event-stream";
    }
    try {
      const resp = await fetch(form.dataset.endpoint, {
        method: "POST",
        headers: headers,
        body: JSON.stringify(body)
      });
      const text = await resp.text();
      if (!resp.ok) {
        line("error", "error: " + text);
        return;
      }
      if (stream.checked) {
        const parts = text.split("\n\n")
          .filter(function (c) { return c.startsWith("data: ") && c !== "data: [DONE]"; })
          .map(function (c) { return JSON.parse(c.slice(6)).message.content.parts[0]; });
        line("assistant", "assistant: " + (parts.length ? parts[parts.length - 1] : ""));
      } else {
        line("assistant", "assistant: " + JSON.parse(text).message.content.parts[0]);
      }
    } catch (err) {
      line("error", "error: " + err);
    }
  });
})();
</script>
</body>
</html>
`))
