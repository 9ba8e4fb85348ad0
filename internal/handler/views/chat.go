// Package views renders the HTML pages served by the handler.
package views

import (
	"context"
	"io"

	"github.com/a-h/templ"

	"github.com/pavelanni/classbot/internal/i18n"
)

const chatStyle = `body{font-family:system-ui,sans-serif;max-width:720px;margin:2rem auto;padding:0 1rem}
#log{border:1px solid #ccc;border-radius:6px;height:60vh;overflow-y:auto;padding:.75rem}
.msg{margin:.5rem 0}.user{text-align:right;color:#1a4d8f}.bot{color:#222}
form{display:flex;gap:.5rem;margin-top:.75rem}input{flex:1;padding:.5rem}`

// The page keeps its session id in a data attribute and sends it with
// every message so each browser tab has its own conversation.
const chatScript = `(function(){
var sid=document.body.dataset.session,log=document.getElementById("log"),form=document.getElementById("chat"),input=document.getElementById("message");
function add(cls,html,raw){var d=document.createElement("div");d.className="msg "+cls;if(raw){d.textContent=html}else{d.innerHTML=html}log.appendChild(d);log.scrollTop=log.scrollHeight}
form.addEventListener("submit",function(e){e.preventDefault();var text=input.value;if(!text.trim())return;add("user",text,true);input.value="";
fetch("chat",{method:"POST",headers:{"Content-Type":"application/json","X-Session-ID":sid},body:JSON.stringify({message:text})})
.then(function(r){return r.json()}).then(function(j){add("bot",j.response||j.error||"")}).catch(function(err){add("bot",String(err),true)})});
})();`

// ChatPage renders the chat client for session sessionID.
func ChatPage(sessionID string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		title := templ.EscapeString(i18n.T(ctx, "AppTitle"))
		_, err := io.WriteString(w, `<!DOCTYPE html><html><head><meta charset="utf-8">`+
			`<meta name="viewport" content="width=device-width, initial-scale=1">`+
			`<title>`+title+`</title><style>`+chatStyle+`</style></head>`+
			`<body data-session="`+templ.EscapeString(sessionID)+`">`+
			`<h1>`+title+`</h1><div id="log"></div>`+
			`<form id="chat"><input id="message" autocomplete="off" autofocus placeholder="`+
			templ.EscapeString(i18n.T(ctx, "ChatPlaceholder"))+`">`+
			`<button type="submit">`+templ.EscapeString(i18n.T(ctx, "Send"))+`</button></form>`+
			`<script>`+chatScript+`</script></body></html>`)
		return err
	})
}
