package retrieval

// In-page extraction scripts. Both return a plain object so chromedp can
// unmarshal the Runtime.evaluate result directly.

const productExtractScript = `(function() {
	const text = (el) => el ? el.textContent.trim() : '';
	const pick = (selectors) => {
		for (const sel of selectors) {
			const el = document.querySelector(sel);
			if (el) {
				const v = el.tagName === 'META' ? (el.getAttribute('content') || '') : text(el);
				if (v) return v;
			}
		}
		return '';
	};

	const out = {
		title: text(document.querySelector('h1')) || document.title || '',
		description: pick(['.product-description', '.description', '#description', '[class*="description"]', 'meta[name="description"]']),
		installation: pick(['.installation-guide', '.installation', '#installation', '[class*="installation"]', '[id*="installation"]']),
		compatibility: [],
		specs: {},
		relatedParts: []
	};

	for (const sel of ['.compatibility', '.compatible-models', '[class*="compat"]', '[id*="compat"]']) {
		const root = document.querySelector(sel);
		if (!root) continue;
		for (const item of root.querySelectorAll('li, a, span')) {
			const t = text(item);
			if (t && t.length > 2) out.compatibility.push(t);
		}
		if (out.compatibility.length) break;
	}

	for (const sel of ['table.specifications', '.specifications', '.specs', '[class*="spec"]', 'dl']) {
		const root = document.querySelector(sel);
		if (!root) continue;
		if (root.tagName === 'TABLE') {
			for (const row of root.querySelectorAll('tr')) {
				const cells = row.querySelectorAll('td, th');
				if (cells.length >= 2) {
					const k = text(cells[0]), v = text(cells[1]);
					if (k && v) out.specs[k] = v;
				}
			}
		} else if (root.tagName === 'DL') {
			const dts = root.querySelectorAll('dt'), dds = root.querySelectorAll('dd');
			for (let i = 0; i < Math.min(dts.length, dds.length); i++) {
				const k = text(dts[i]), v = text(dds[i]);
				if (k && v) out.specs[k] = v;
			}
		} else {
			for (const item of root.querySelectorAll('li, div')) {
				const t = text(item);
				const idx = t.indexOf(':');
				if (idx > 0) {
					const k = t.slice(0, idx).trim(), v = t.slice(idx + 1).trim();
					if (k && v) out.specs[k] = v;
				}
			}
		}
		if (Object.keys(out.specs).length) break;
	}

	const seen = {};
	for (const a of document.querySelectorAll('a[href]')) {
		const m = ((a.getAttribute('href') || '') + ' ' + text(a)).match(/PS\d+/);
		if (m && !seen[m[0]]) {
			seen[m[0]] = true;
			out.relatedParts.push(m[0]);
		}
	}

	if (!out.title) {
		const og = document.querySelector('meta[property="og:title"]');
		if (og) out.title = og.getAttribute('content') || '';
	}

	return out;
})()`

const modelExtractScript = `(function() {
	const text = (el) => el ? el.textContent.trim() : '';
	const pick = (selectors) => {
		for (const sel of selectors) {
			const el = document.querySelector(sel);
			if (el) {
				const v = el.tagName === 'META' ? (el.getAttribute('content') || '') : text(el);
				if (v) return v;
			}
		}
		return '';
	};

	const out = {
		title: text(document.querySelector('h1')) || document.title || '',
		description: pick(['.model-description', '.description', '#description', '[class*="description"]', 'meta[name="description"]']),
		instructions: pick(['.instructions', '.installation-instructions', '.setup-instructions', '[class*="instruction"]', '[id*="instruction"]']),
		parts: []
	};

	const collect = (root) => {
		const seen = {};
		const parts = [];
		for (const a of root.querySelectorAll('a[href]')) {
			const t = text(a);
			const m = ((a.getAttribute('href') || '') + ' ' + t).match(/PS\d+/);
			if (m && !seen[m[0]]) {
				seen[m[0]] = true;
				parts.push({ partNumber: m[0], description: t || (a.getAttribute('title') || '') });
			}
		}
		return parts;
	};

	for (const sel of ['.compatible-parts', '.parts-list', '.related-parts', '[class*="part"]', '[id*="part"]']) {
		const root = document.querySelector(sel);
		if (!root) continue;
		out.parts = collect(root);
		if (out.parts.length) break;
	}
	if (!out.parts.length) out.parts = collect(document);

	if (!out.title) {
		const og = document.querySelector('meta[property="og:title"]');
		if (og) out.title = og.getAttribute('content') || '';
	}

	return out;
})()`
