package web

// Status page: positions and daily stats polled from /api/status, scan
// results pushed over /events.
const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <title>Updown</title>
  <link rel="preconnect" href="https://fonts.googleapis.com">
  <link rel="preconnect" href="https://fonts.gstatic.com" crossorigin>
  <link href="https://fonts.googleapis.com/css2?family=Press+Start+2P&family=Space+Mono:wght@400;700&display=swap" rel="stylesheet">
  <style>
    :root {
      --bg:#ffffff;
      --ink:#111111;
      --ink-mid:#4d4d4d;
      --ink-soft:#9c9c9c;
      --panel:#f6f6f6;
      --up:#1f9d55;
      --down:#d6336c;
    }
    * { box-sizing:border-box; }
    body {
      margin:0;
      min-height:100vh;
      display:flex;
      justify-content:center;
      padding:2rem;
      background:var(--bg);
      color:var(--ink);
      font-family:'Space Mono','JetBrains Mono',monospace;
    }
    body::before {
      content:'';
      position:fixed;
      inset:0;
      background:
        linear-gradient(90deg, rgba(0,0,0,.02) 1px, transparent 1px),
        linear-gradient(rgba(0,0,0,.02) 1px, transparent 1px);
      background-size:12px 12px;
      pointer-events:none;
    }
    #app {
      width:min(1200px, 96vw);
      background:var(--panel);
      border:3px solid var(--ink);
      padding:2rem;
      box-shadow:12px 12px 0 rgba(0,0,0,.15);
      display:grid;
      grid-template-columns:1fr 340px;
      gap:2rem;
    }
    h1 { font-family:'Press Start 2P',monospace; font-size:1rem; margin:0 0 1.5rem; }
    h2 { font-family:'Press Start 2P',monospace; font-size:.7rem; margin:1.5rem 0 .75rem; color:var(--ink-mid); }
    table { width:100%; border-collapse:collapse; font-size:.85rem; }
    th, td { text-align:left; padding:.35rem .5rem; border-bottom:1px solid rgba(0,0,0,.1); }
    th { color:var(--ink-soft); font-weight:400; }
    .up { color:var(--up); }
    .down { color:var(--down); }
    .muted { color:var(--ink-soft); }
    .stat { display:flex; justify-content:space-between; padding:.3rem 0; border-bottom:1px dashed rgba(0,0,0,.1); }
    .badge { display:inline-block; padding:.1rem .5rem; border:2px solid var(--ink); font-size:.7rem; }
    .halted { background:var(--down); color:#fff; border-color:var(--down); }
  </style>
</head>
<body>
<div id="app">
  <div>
    <h1>UPDOWN <span id="mode" class="badge">-</span> <span id="halted"></span></h1>
    <h2>OPPORTUNITIES</h2>
    <table>
      <thead><tr><th>Market</th><th>Dir</th><th>Score</th><th>Conf</th><th>Expiry</th><th>Reason</th></tr></thead>
      <tbody id="opps"><tr><td colspan="6" class="muted">waiting for scan...</td></tr></tbody>
    </table>
    <h2>POSITIONS</h2>
    <table>
      <thead><tr><th>Market</th><th>Side</th><th>Shares</th><th>Entry</th><th>Now</th><th>P&amp;L</th></tr></thead>
      <tbody id="positions"><tr><td colspan="6" class="muted">no open positions</td></tr></tbody>
    </table>
  </div>
  <div>
    <h2>TODAY</h2>
    <div class="stat"><span>Daily P&amp;L</span><span id="pnl">-</span></div>
    <div class="stat"><span>Trades</span><span id="trades">-</span></div>
    <div class="stat"><span>Win / Loss</span><span id="wl">-</span></div>
    <div class="stat"><span>Cash</span><span id="cash">-</span></div>
    <h2>LEARNER</h2>
    <div class="stat"><span>Trades</span><span id="ltrades">-</span></div>
    <div class="stat"><span>Total P&amp;L</span><span id="lpnl">-</span></div>
    <div class="stat"><span>Avoided patterns</span><span id="avoid">-</span></div>
    <p id="summary" class="muted"></p>
  </div>
</div>
<script>
  const fmt = (v, d) => Number(v || 0).toFixed(d);
  const minutes = ns => Math.floor(ns / 6e10) + 'm';

  function renderOpps(scan) {
    const body = document.getElementById('opps');
    const opps = scan.Opportunities || [];
    if (!opps.length) {
      body.innerHTML = '<tr><td colspan="6" class="muted">none of ' + (scan.Scanned || []).length + ' scanned markets</td></tr>';
      return;
    }
    body.innerHTML = opps.map(o => {
      const dir = o.signal.direction;
      const cls = dir === 'BULLISH' ? 'up' : (dir === 'BEARISH' ? 'down' : 'muted');
      return '<tr><td>' + o.market.asset + ' ' + o.market.timeframe + '</td>' +
        '<td class="' + cls + '">' + dir + '</td><td>' + o.score + '</td><td>' + o.signal.confidence + '</td>' +
        '<td>' + (o.has_expiry ? minutes(o.to_expiry) : '?') + '</td><td>' + o.reason + '</td></tr>';
    }).join('');
  }

  function renderStatus(st) {
    document.getElementById('mode').textContent = st.mode.toUpperCase();
    document.getElementById('halted').innerHTML = st.risk.trading_enabled ? '' : '<span class="badge halted">HALTED</span>';
    const pnl = Number(st.risk.daily_pnl);
    const pnlEl = document.getElementById('pnl');
    pnlEl.textContent = '$' + fmt(pnl, 2);
    pnlEl.className = pnl < 0 ? 'down' : 'up';
    document.getElementById('trades').textContent = st.today.trades;
    document.getElementById('wl').textContent = st.today.wins + ' / ' + st.today.losses;
    document.getElementById('cash').textContent = st.has_cash ? '$' + fmt(st.cash, 2) : '-';
    document.getElementById('ltrades').textContent = st.learner.trades;
    document.getElementById('lpnl').textContent = '$' + fmt(st.learner.total_pnl, 2);
    document.getElementById('avoid').textContent = (st.learner.avoid || []).length;
    document.getElementById('summary').textContent = st.summary;

    const body = document.getElementById('positions');
    const positions = st.positions || [];
    if (!positions.length) {
      body.innerHTML = '<tr><td colspan="6" class="muted">no open positions</td></tr>';
      return;
    }
    body.innerHTML = positions.map(p => {
      const pct = Number(p.pnl_pct);
      return '<tr><td>' + p.market.asset + ' ' + p.market.timeframe + '</td>' +
        '<td class="' + (p.side === 'UP' ? 'up' : 'down') + '">' + p.side + (p.partially_exited ? ' (partial)' : '') + '</td>' +
        '<td>' + fmt(p.shares, 2) + '</td><td>' + fmt(p.entry_price, 3) + '</td>' +
        '<td>' + (p.has_price ? fmt(p.price, 3) : '-') + '</td>' +
        '<td class="' + (pct < 0 ? 'down' : 'up') + '">' + (p.has_price ? fmt(pct, 1) + '%' : '-') + '</td></tr>';
    }).join('');
  }

  async function poll() {
    try {
      const res = await fetch('/api/status');
      renderStatus(await res.json());
    } catch (e) {
      console.error('status poll failed', e);
    }
  }

  fetch('/api/opportunities').then(r => r.json()).then(renderOpps).catch(() => {});
  poll();
  setInterval(poll, 3000);

  const source = new EventSource('/events');
  source.addEventListener('scan', ev => renderOpps(JSON.parse(ev.data)));
</script>
</body>
</html>`
