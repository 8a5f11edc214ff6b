// internal/browser/cdpdriver/scripts.go
package cdpdriver

// Page functions run through Runtime.callFunctionOn with the element as
// `this`. Every one of them starts with attachedGuard so a detached node
// surfaces as a stale reference rather than a silently wrong answer.

const attachedGuard = `if (!this.isConnected) { throw new Error('stale element reference'); }`

const displayedBody = `
	const shown = (el) => {
		if (el.tagName === 'INPUT' && (el.type || '').toLowerCase() === 'hidden') { return false; }
		if (el.tagName === 'OPTION' || el.tagName === 'OPTGROUP') {
			const sel = el.closest('select');
			return sel ? shown(sel) : true;
		}
		const style = window.getComputedStyle(el);
		if (style.display === 'none' || style.visibility === 'hidden' || style.visibility === 'collapse') { return false; }
		return el.getClientRects().length > 0;
	};`

const editableBody = `
	const tag = this.tagName.toLowerCase();
	if (tag !== 'input' && tag !== 'textarea') {
		throw new Error('element not interactable: <' + tag + '> does not accept input');
	}
	if (this.disabled) { throw new Error('element not interactable: element is disabled'); }
	if (this.readOnly) { throw new Error('element not interactable: element is read-only'); }
	if (!shown(this)) { throw new Error('element not interactable: element is not displayed'); }`

const jsFind = `function(kind, sel, all) {
	if (this.nodeType !== 9) { ` + attachedGuard + ` }
	let found = [];
	try {
		if (kind === 'xpath') {
			const doc = this.ownerDocument || this;
			const snap = doc.evaluate(sel, this, null, XPathResult.ORDERED_NODE_SNAPSHOT_TYPE, null);
			for (let i = 0; i < snap.snapshotLength; i++) {
				const n = snap.snapshotItem(i);
				if (n.nodeType === 1) { found.push(n); }
			}
		} else {
			found = Array.from(this.querySelectorAll(sel));
		}
	} catch (e) {
		throw new Error('invalid selector: ' + e.message);
	}
	return all ? found : (found[0] || null);
}`

const jsLength = `function() { return this.length; }`

const jsItem = `function(i) { return this[i]; }`

const jsAttribute = `function(name) {
	` + attachedGuard + `
	name = name.toLowerCase();
	if (name === 'value' && 'value' in this) { return String(this.value); }
	const prop = this[name];
	if (typeof prop === 'boolean') { return prop ? 'true' : ''; }
	const v = this.getAttribute(name);
	return v === null ? '' : v;
}`

const jsDisplayed = `function() {
	` + attachedGuard + displayedBody + `
	return shown(this);
}`

const jsText = `function() {
	` + attachedGuard + displayedBody + `
	if (!shown(this)) { return ''; }
	return (this.innerText || '').replace(/\u00a0/g, ' ').trim();
}`

const jsTagName = `function() {
	` + attachedGuard + `
	return this.tagName.toLowerCase();
}`

const jsClear = `function() {
	` + attachedGuard + displayedBody + editableBody + `
	this.focus();
	this.value = '';
	this.dispatchEvent(new Event('input', {bubbles: true}));
	this.dispatchEvent(new Event('change', {bubbles: true}));
}`

// jsFocus prepares an element for keystrokes and reports whether it is a
// file input, which takes paths instead of typed text.
const jsFocus = `function() {
	` + attachedGuard + displayedBody + editableBody + `
	this.focus();
	if (typeof this.setSelectionRange === 'function' && this.type !== 'file' && this.type !== 'email' && this.type !== 'number') {
		const end = this.value.length;
		this.setSelectionRange(end, end);
	}
	return (this.type || '').toLowerCase() === 'file';
}`

const jsFileInput = `function(count) {
	` + attachedGuard + `
	if (this.tagName !== 'INPUT' || (this.type || '').toLowerCase() !== 'file') {
		throw new Error('element not interactable: not a file input');
	}
	if (count > 1 && !this.multiple) {
		throw new Error('element not interactable: file input does not accept multiple files');
	}
}`

const jsSelect = `function(by, want) {
	` + attachedGuard + `
	if (this.tagName !== 'SELECT') {
		throw new Error('element not interactable: element should have been "select" but was "' + this.tagName.toLowerCase() + '"');
	}
	if (this.disabled) { throw new Error('element not interactable: select is disabled'); }
	const norm = (s) => s.replace(/\s+/g, ' ').trim();
	const opt = Array.from(this.options).find((o) => by === 'value' ? o.value === want : norm(o.text) === norm(want));
	if (!opt) { throw new Error('no such option: cannot locate option with ' + by + ': ' + want); }
	if (opt.disabled) { throw new Error('element not interactable: option "' + want + '" is disabled'); }
	if (!this.multiple) {
		for (const o of this.options) { o.selected = false; }
	}
	opt.selected = true;
	this.dispatchEvent(new Event('input', {bubbles: true}));
	this.dispatchEvent(new Event('change', {bubbles: true}));
}`
