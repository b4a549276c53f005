package script

import (
	"context"

	lua "github.com/yuin/gopher-lua"
)

// install sets the bus table as a global of the Lua state.
func (c *Context) install() {
	L := c.state
	mod := L.NewTable()
	L.SetField(mod, "on", L.NewFunction(c.luaOn))
	L.SetField(mod, "off", L.NewFunction(c.luaOff))
	L.SetField(mod, "emit", L.NewFunction(c.luaEmit))
	L.SetField(mod, "onRequest", L.NewFunction(c.luaOnRequest))
	L.SetGlobal(c.global, mod)
}

// keyAndFunction validates the (key, fn) pair shared by on and onRequest.
func keyAndFunction(L *lua.LState) (string, *lua.LFunction) {
	if L.GetTop() != 2 {
		L.RaiseError(msgTwoArguments)
		return "", nil
	}
	key, ok := L.Get(1).(lua.LString)
	if !ok {
		L.RaiseError(msgKeyNotString)
		return "", nil
	}
	fn, ok := L.Get(2).(*lua.LFunction)
	if !ok {
		L.RaiseError(msgNotFunction)
		return "", nil
	}
	return string(key), fn
}

// on(key, fn) -> handler id
func (c *Context) luaOn(L *lua.LState) int {
	key, fn := keyAndFunction(L)

	id, err := c.bus.Attach(key, NewHandler(c, fn))
	if err != nil {
		L.RaiseError("%s", err.Error())
		return 0
	}
	c.subs = append(c.subs, subscription{key: key, id: id})

	L.Push(lua.LNumber(id))
	return 1
}

// off(key, id) -> bool
func (c *Context) luaOff(L *lua.LState) int {
	key := L.CheckString(1)
	id := L.CheckNumber(2)

	for i, s := range c.subs {
		if s.key == key && float64(s.id) == float64(id) {
			c.subs = append(c.subs[:i], c.subs[i+1:]...)
			L.Push(lua.LBool(c.bus.Off(key, s.id)))
			return 1
		}
	}
	L.Push(lua.LFalse)
	return 1
}

// emit(key, ...)
func (c *Context) luaEmit(L *lua.LState) int {
	if L.GetTop() < 1 {
		L.RaiseError(msgNeedsArguments)
		return 0
	}
	key, ok := L.Get(1).(lua.LString)
	if !ok {
		L.RaiseError(msgKeyNotString)
		return 0
	}

	c.bus.EmitArgs(context.Background(), string(key), argsFromStack(L, 2))
	return 0
}

// onRequest(key, fn)
func (c *Context) luaOnRequest(L *lua.LState) int {
	key, fn := keyAndFunction(L)

	h := NewRequestHandler(c, fn)
	if err := c.bus.AttachRequest(key, h); err != nil {
		L.RaiseError("%s", err.Error())
		return 0
	}
	c.requests[key] = h
	return 0
}
