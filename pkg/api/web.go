package api

var tmpl = `
<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>YT-Summary</title>
    <style>
        :root { --bg: #121212; --card: #1e1e1e; --text: #e0e0e0; --accent: #ff4444; }
        body { background: var(--bg); color: var(--text); font-family: system-ui, sans-serif; display: grid; place-items: center; min-height: 100vh; margin: 0; }
        .container { background: var(--card); padding: 2rem; border-radius: 12px; box-shadow: 0 10px 30px rgba(0,0,0,0.5); width: 90%; max-width: 640px; }
        h1 { margin: 0 0 1rem; font-size: 1.5rem; color: var(--accent); text-align: center; }
        input { width: 100%; padding: 12px; margin: 10px 0; border: 1px solid #333; border-radius: 6px; background: #252525; color: #fff; box-sizing: border-box; outline: none; }
        input:focus { border-color: var(--accent); }
        button { width: 100%; padding: 12px; border: none; border-radius: 6px; background: var(--accent); color: white; font-weight: bold; cursor: pointer; transition: 0.2s; }
        button:hover { opacity: 0.9; }
        button:disabled { background: #555; cursor: not-allowed; }
        #result { margin-top: 20px; line-height: 1.6; word-break: break-word; white-space: pre-wrap; }
        .title { font-weight: bold; margin-bottom: 10px; }
        .error { color: var(--accent); font-size: 0.9rem; }
    </style>
</head>
<body>
    <div class="container">
        <h1>YouTube Summary</h1>
        <form id="sumForm">
            <input type="url" id="url" placeholder="https://youtube.com/watch?v=..." required>
            <button type="submit" id="btn">Summarize</button>
        </form>
        <div id="result"></div>
    </div>

    <script>
        const f = document.getElementById('sumForm'),
              r = document.getElementById('result'),
              b = document.getElementById('btn');

        f.onsubmit = async (e) => {
            e.preventDefault();
            b.disabled = true;
            r.textContent = '⏳ Summarizing, this can take a few minutes...';

            try {
                const resp = await fetch('/summarize', {
                    method: 'POST',
                    headers: {'Content-Type': 'application/json'},
                    body: JSON.stringify({url: document.getElementById('url').value.trim()})
                });
                const data = await resp.json();

                if (!resp.ok) throw new Error(data.error || ('HTTP ' + resp.status));
                r.textContent = '';
                if (data.title) {
                    const t = document.createElement('div');
                    t.className = 'title';
                    t.textContent = data.title;
                    r.appendChild(t);
                }
                const s = document.createElement('div');
                s.textContent = data.summary;
                r.appendChild(s);

            } catch (err) {
                r.textContent = '';
                const d = document.createElement('div');
                d.className = 'error';
                d.textContent = '❌ ' + err.message;
                r.appendChild(d);
            } finally {
                b.disabled = false;
            }
        };
    </script>
</body>
</html>
`
