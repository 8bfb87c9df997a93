package service

import (
	"context"
	"encoding/json"
	"net/http"

	"connectrpc.com/connect"
)

// jsonCodec lets Connect carry the plain Go messages in api.go.
type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// Service and procedure names.
const (
	AuthServiceName   = "splitbill.v1.AuthService"
	LedgerServiceName = "splitbill.v1.LedgerService"

	AuthServiceRegisterProcedure       = "/" + AuthServiceName + "/Register"
	AuthServiceLoginProcedure          = "/" + AuthServiceName + "/Login"
	AuthServiceLogoutProcedure         = "/" + AuthServiceName + "/Logout"
	AuthServiceGetCurrentUserProcedure = "/" + AuthServiceName + "/GetCurrentUser"

	LedgerServiceGetLedgerProcedure     = "/" + LedgerServiceName + "/GetLedger"
	LedgerServiceAddExpenseProcedure    = "/" + LedgerServiceName + "/AddExpense"
	LedgerServiceDeleteExpenseProcedure = "/" + LedgerServiceName + "/DeleteExpense"
	LedgerServiceComputeSplitProcedure  = "/" + LedgerServiceName + "/ComputeSplit"
	LedgerServiceListFriendsProcedure   = "/" + LedgerServiceName + "/ListFriends"
	LedgerServiceAddFriendProcedure     = "/" + LedgerServiceName + "/AddFriend"
	LedgerServiceDeleteFriendProcedure  = "/" + LedgerServiceName + "/DeleteFriend"
	LedgerServiceGetBalancesProcedure   = "/" + LedgerServiceName + "/GetBalances"
	LedgerServicePrefillProcedure       = "/" + LedgerServiceName + "/Prefill"
)

// PublicProcedures do not require a session token.
var PublicProcedures = []string{
	AuthServiceRegisterProcedure,
	AuthServiceLoginProcedure,
	LedgerServiceComputeSplitProcedure,
	LedgerServicePrefillProcedure,
}

func handlerOptions(opts []connect.HandlerOption) []connect.HandlerOption {
	return append([]connect.HandlerOption{connect.WithCodec(jsonCodec{})}, opts...)
}

// NewAuthServiceHandler builds an HTTP handler serving svc, and the path to mount it on.
func NewAuthServiceHandler(svc *AuthService, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = handlerOptions(opts)
	mux := http.NewServeMux()
	mux.Handle(AuthServiceRegisterProcedure, connect.NewUnaryHandler(AuthServiceRegisterProcedure, svc.Register, opts...))
	mux.Handle(AuthServiceLoginProcedure, connect.NewUnaryHandler(AuthServiceLoginProcedure, svc.Login, opts...))
	mux.Handle(AuthServiceLogoutProcedure, connect.NewUnaryHandler(AuthServiceLogoutProcedure, svc.Logout, opts...))
	mux.Handle(AuthServiceGetCurrentUserProcedure, connect.NewUnaryHandler(AuthServiceGetCurrentUserProcedure, svc.GetCurrentUser, opts...))
	return "/" + AuthServiceName + "/", mux
}

// NewLedgerServiceHandler builds an HTTP handler serving svc, and the path to mount it on.
func NewLedgerServiceHandler(svc *LedgerService, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = handlerOptions(opts)
	mux := http.NewServeMux()
	mux.Handle(LedgerServiceGetLedgerProcedure, connect.NewUnaryHandler(LedgerServiceGetLedgerProcedure, svc.GetLedger, opts...))
	mux.Handle(LedgerServiceAddExpenseProcedure, connect.NewUnaryHandler(LedgerServiceAddExpenseProcedure, svc.AddExpense, opts...))
	mux.Handle(LedgerServiceDeleteExpenseProcedure, connect.NewUnaryHandler(LedgerServiceDeleteExpenseProcedure, svc.DeleteExpense, opts...))
	mux.Handle(LedgerServiceComputeSplitProcedure, connect.NewUnaryHandler(LedgerServiceComputeSplitProcedure, svc.ComputeSplit, opts...))
	mux.Handle(LedgerServiceListFriendsProcedure, connect.NewUnaryHandler(LedgerServiceListFriendsProcedure, svc.ListFriends, opts...))
	mux.Handle(LedgerServiceAddFriendProcedure, connect.NewUnaryHandler(LedgerServiceAddFriendProcedure, svc.AddFriend, opts...))
	mux.Handle(LedgerServiceDeleteFriendProcedure, connect.NewUnaryHandler(LedgerServiceDeleteFriendProcedure, svc.DeleteFriend, opts...))
	mux.Handle(LedgerServiceGetBalancesProcedure, connect.NewUnaryHandler(LedgerServiceGetBalancesProcedure, svc.GetBalances, opts...))
	mux.Handle(LedgerServicePrefillProcedure, connect.NewUnaryHandler(LedgerServicePrefillProcedure, svc.Prefill, opts...))
	return "/" + LedgerServiceName + "/", mux
}

// AuthClient calls an AuthService.
type AuthClient struct {
	register       *connect.Client[RegisterRequest, RegisterResponse]
	login          *connect.Client[LoginRequest, LoginResponse]
	logout         *connect.Client[LogoutRequest, LogoutResponse]
	getCurrentUser *connect.Client[GetCurrentUserRequest, GetCurrentUserResponse]
}

func clientOptions(opts []connect.ClientOption) []connect.ClientOption {
	return append([]connect.ClientOption{connect.WithCodec(jsonCodec{})}, opts...)
}

func NewAuthClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *AuthClient {
	opts = clientOptions(opts)
	return &AuthClient{
		register:       connect.NewClient[RegisterRequest, RegisterResponse](httpClient, baseURL+AuthServiceRegisterProcedure, opts...),
		login:          connect.NewClient[LoginRequest, LoginResponse](httpClient, baseURL+AuthServiceLoginProcedure, opts...),
		logout:         connect.NewClient[LogoutRequest, LogoutResponse](httpClient, baseURL+AuthServiceLogoutProcedure, opts...),
		getCurrentUser: connect.NewClient[GetCurrentUserRequest, GetCurrentUserResponse](httpClient, baseURL+AuthServiceGetCurrentUserProcedure, opts...),
	}
}

func (c *AuthClient) Register(ctx context.Context, req *connect.Request[RegisterRequest]) (*connect.Response[RegisterResponse], error) {
	return c.register.CallUnary(ctx, req)
}

func (c *AuthClient) Login(ctx context.Context, req *connect.Request[LoginRequest]) (*connect.Response[LoginResponse], error) {
	return c.login.CallUnary(ctx, req)
}

func (c *AuthClient) Logout(ctx context.Context, req *connect.Request[LogoutRequest]) (*connect.Response[LogoutResponse], error) {
	return c.logout.CallUnary(ctx, req)
}

func (c *AuthClient) GetCurrentUser(ctx context.Context, req *connect.Request[GetCurrentUserRequest]) (*connect.Response[GetCurrentUserResponse], error) {
	return c.getCurrentUser.CallUnary(ctx, req)
}

// LedgerClient calls a LedgerService.
type LedgerClient struct {
	getLedger     *connect.Client[GetLedgerRequest, GetLedgerResponse]
	addExpense    *connect.Client[AddExpenseRequest, AddExpenseResponse]
	deleteExpense *connect.Client[DeleteExpenseRequest, DeleteExpenseResponse]
	computeSplit  *connect.Client[ComputeSplitRequest, ComputeSplitResponse]
	listFriends   *connect.Client[ListFriendsRequest, ListFriendsResponse]
	addFriend     *connect.Client[AddFriendRequest, AddFriendResponse]
	deleteFriend  *connect.Client[DeleteFriendRequest, DeleteFriendResponse]
	getBalances   *connect.Client[GetBalancesRequest, GetBalancesResponse]
	prefill       *connect.Client[PrefillRequest, PrefillResponse]
}

func NewLedgerClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *LedgerClient {
	opts = clientOptions(opts)
	return &LedgerClient{
		getLedger:     connect.NewClient[GetLedgerRequest, GetLedgerResponse](httpClient, baseURL+LedgerServiceGetLedgerProcedure, opts...),
		addExpense:    connect.NewClient[AddExpenseRequest, AddExpenseResponse](httpClient, baseURL+LedgerServiceAddExpenseProcedure, opts...),
		deleteExpense: connect.NewClient[DeleteExpenseRequest, DeleteExpenseResponse](httpClient, baseURL+LedgerServiceDeleteExpenseProcedure, opts...),
		computeSplit:  connect.NewClient[ComputeSplitRequest, ComputeSplitResponse](httpClient, baseURL+LedgerServiceComputeSplitProcedure, opts...),
		listFriends:   connect.NewClient[ListFriendsRequest, ListFriendsResponse](httpClient, baseURL+LedgerServiceListFriendsProcedure, opts...),
		addFriend:     connect.NewClient[AddFriendRequest, AddFriendResponse](httpClient, baseURL+LedgerServiceAddFriendProcedure, opts...),
		deleteFriend:  connect.NewClient[DeleteFriendRequest, DeleteFriendResponse](httpClient, baseURL+LedgerServiceDeleteFriendProcedure, opts...),
		getBalances:   connect.NewClient[GetBalancesRequest, GetBalancesResponse](httpClient, baseURL+LedgerServiceGetBalancesProcedure, opts...),
		prefill:       connect.NewClient[PrefillRequest, PrefillResponse](httpClient, baseURL+LedgerServicePrefillProcedure, opts...),
	}
}

func (c *LedgerClient) GetLedger(ctx context.Context, req *connect.Request[GetLedgerRequest]) (*connect.Response[GetLedgerResponse], error) {
	return c.getLedger.CallUnary(ctx, req)
}

func (c *LedgerClient) AddExpense(ctx context.Context, req *connect.Request[AddExpenseRequest]) (*connect.Response[AddExpenseResponse], error) {
	return c.addExpense.CallUnary(ctx, req)
}

func (c *LedgerClient) DeleteExpense(ctx context.Context, req *connect.Request[DeleteExpenseRequest]) (*connect.Response[DeleteExpenseResponse], error) {
	return c.deleteExpense.CallUnary(ctx, req)
}

func (c *LedgerClient) ComputeSplit(ctx context.Context, req *connect.Request[ComputeSplitRequest]) (*connect.Response[ComputeSplitResponse], error) {
	return c.computeSplit.CallUnary(ctx, req)
}

func (c *LedgerClient) ListFriends(ctx context.Context, req *connect.Request[ListFriendsRequest]) (*connect.Response[ListFriendsResponse], error) {
	return c.listFriends.CallUnary(ctx, req)
}

func (c *LedgerClient) AddFriend(ctx context.Context, req *connect.Request[AddFriendRequest]) (*connect.Response[AddFriendResponse], error) {
	return c.addFriend.CallUnary(ctx, req)
}

func (c *LedgerClient) DeleteFriend(ctx context.Context, req *connect.Request[DeleteFriendRequest]) (*connect.Response[DeleteFriendResponse], error) {
	return c.deleteFriend.CallUnary(ctx, req)
}

func (c *LedgerClient) GetBalances(ctx context.Context, req *connect.Request[GetBalancesRequest]) (*connect.Response[GetBalancesResponse], error) {
	return c.getBalances.CallUnary(ctx, req)
}

func (c *LedgerClient) Prefill(ctx context.Context, req *connect.Request[PrefillRequest]) (*connect.Response[PrefillResponse], error) {
	return c.prefill.CallUnary(ctx, req)
}
