package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const orderControllerPHP = `<?php
namespace App\Http\Controllers;

use App\Models\Order;
use Symfony\Component\HttpFoundation\Response;

class OrderController extends Controller
{
    /**
     * Create an order.
     * @deprecated use checkout instead
     */
    public function store()
    {
        $this->authorize('create', Order::class);
        return response()->json([], Response::HTTP_CREATED);
    }

    public function show($id)
    {
        return Order::findOrFail($id);
    }

    public function destroy($id)
    {
        abort_if(! $id, 400);
        return response()->noContent();
    }

    public function index()
    {
        return [];
    }
}
`

func newResponseCodeAnalyzer(t *testing.T) *ResponseCodeAnalyzer {
	ix, _ := buildIndex(t, map[string]string{
		"app/Http/Controllers/OrderController.php": orderControllerPHP,
	})
	return NewResponseCodeAnalyzer(ix)
}

func orderAction(method string) Handler {
	return Handler{Kind: HandlerMethod, Class: `App\Http\Controllers\OrderController`, Method: method}
}

func TestResponseCodeAnalyzer_Explicit(t *testing.T) {
	a := newResponseCodeAnalyzer(t)

	codes := a.Analyze(orderAction("store"), ResponseContext{Method: "POST"})
	assert.Equal(t, map[string]string{"201": "Created", "403": "Forbidden"}, codes)

	codes = a.Analyze(orderAction("show"), ResponseContext{Method: "GET"})
	assert.Equal(t, map[string]string{"200": "OK", "404": "Not Found"}, codes)

	codes = a.Analyze(orderAction("destroy"), ResponseContext{Method: "DELETE"})
	assert.Equal(t, map[string]string{"204": "No Content", "400": "Bad Request"}, codes)
}

func TestResponseCodeAnalyzer_Implied(t *testing.T) {
	a := newResponseCodeAnalyzer(t)

	codes := a.Analyze(orderAction("index"), ResponseContext{
		Method:        "GET",
		Authenticated: true,
		Validated:     true,
		Throttled:     true,
		HasParameters: true,
	})
	assert.Equal(t, map[string]string{
		"200": "OK",
		"401": "Unauthorized",
		"404": "Not Found",
		"422": "Unprocessable Entity",
		"429": "Too Many Requests",
	}, codes)
}

func TestResponseCodeAnalyzer_DefaultSuccess(t *testing.T) {
	a := newResponseCodeAnalyzer(t)

	// store without explicit codes defaults to 201
	codes := a.Analyze(Handler{Kind: HandlerMethod, Class: `App\Http\Controllers\Missing`, Method: "store"}, ResponseContext{Method: "POST"})
	assert.Equal(t, map[string]string{"201": "Created"}, codes)

	codes = a.Analyze(Handler{Kind: HandlerClosure}, ResponseContext{Method: "GET"})
	assert.Equal(t, map[string]string{"200": "OK"}, codes)
}

func TestHandlerDoc(t *testing.T) {
	ix, _ := buildIndex(t, map[string]string{
		"app/Http/Controllers/OrderController.php": orderControllerPHP,
	})

	desc, deprecated := HandlerDoc(ix, orderAction("store"))
	assert.Equal(t, "Create an order.", desc)
	assert.True(t, deprecated)

	desc, deprecated = HandlerDoc(ix, orderAction("index"))
	assert.Empty(t, desc)
	assert.False(t, deprecated)

	desc, _ = HandlerDoc(ix, Handler{Kind: HandlerClosure})
	assert.Empty(t, desc)
}
