/*
Package httpserver exposes a deployed name service devnet over HTTP.

Each endpoint maps onto one contract call. Calls that a real chain would
authenticate by transaction sender take the caller address from the
X-CCNS-Caller header.

# Endpoints

  - POST /api/v1/register - Register a name for the caller and propagate it
  - GET /api/v1/lookup/{network}/{name} - Resolve a name on one network
  - GET /api/v1/chains - List enabled destination chains
  - POST /api/v1/fund - Move native currency from the caller to the Register
  - GET /api/v1/balance - Register treasury balance
  - POST /api/v1/relay - Run one bridge relay pass
  - GET /api/v1/messages - Bridge messages and their execution state
  - POST /api/v1/messages/{id}/execute - Re-deliver a failed message
  - GET /api/v1/deployments - Deployment records of every network
  - PUT /api/v1/admin/chains/{selector} - Enable or update a destination chain
  - DELETE /api/v1/admin/chains/{selector} - Disable a destination chain
  - POST /api/v1/admin/withdraw - Send the treasury to a beneficiary
  - GET /livez, /readyz, /drain, /undrain - Health and drain control

Domain errors map to status codes: invalid input 400, unauthorized 403,
unknown chain or message 404, already set 409, fee or funding problems 402.

# Example Usage

	handler := httpserver.NewHandler(net, logger)
	server, err := httpserver.New(&httpserver.HTTPServerConfig{
		ListenAddr:               ":8080",
		Log:                      logger,
		DrainDuration:            45 * time.Second,
		GracefulShutdownDuration: 30 * time.Second,
		ReadTimeout:              60 * time.Second,
		WriteTimeout:             30 * time.Second,
	}, handler)
	if err != nil {
		return err
	}
	server.RunInBackground()
	defer server.Shutdown()
*/
package httpserver
