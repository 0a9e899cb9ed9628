/*

Package swarmbucket gives access to the objects of one bucket in a swarm object
store over plain HTTP.

Every operation maps to a single logical request against
http://<domain>/<bucket>/<name>. The request may be redirected by the node that
receives it to the node holding the object, and may be challenged for digest
credentials; both are handled by swarmhttp.Executor, so callers only see the
terminal response.

Responses are returned as they come from the store: a 404 is a response, not an
error. Errors are reserved for requests that could not be completed, such as
transport failures, redirect loops or unusable challenges.

Object lifetime

Objects may be stored with a time to live. Post encodes the expiry in the
lifepoint header and Present reports the remaining time for objects that carry
a delete lifepoint.

Limitations

Connections are opened per request and never pooled, and only plain HTTP is
spoken.
*/
package swarmbucket
